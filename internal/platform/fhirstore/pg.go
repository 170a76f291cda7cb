package fhirstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miabis/miabis/internal/platform/db"
	"github.com/miabis/miabis/internal/platform/fhir"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Postgres mirrors resources in a single fhir_resource table holding the
// resource JSON as jsonb. Identifier and profile filters are pushed into SQL;
// the remaining parameters are applied with fhir.MatchesSearch.
type Postgres struct {
	pool queryable
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// NewMigrator returns the migrator of the store's tables in schema.
func NewMigrator(pool *pgxpool.Pool, schema string) *db.Migrator {
	return db.NewMigrator(pool, Migrations(), schema)
}

// Migrate creates the fhir_resource and reference_icd10 tables in schema and
// returns the number of migrations applied.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) (int, error) {
	return NewMigrator(pool, schema).Up(ctx)
}

// Migrations returns the SQL migrations of the postgres store.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func (p *Postgres) Create(ctx context.Context, resourceType string, resource map[string]interface{}) (string, error) {
	content, err := clone(resource)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	stamp(content, resourceType, id, 1)
	_, err = p.pool.Exec(ctx, `
		INSERT INTO fhir_resource (resource_type, id, version_id, content)
		VALUES ($1, $2, 1, $3)`,
		resourceType, id, content)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", resourceType, err)
	}
	return id, nil
}

func (p *Postgres) Read(ctx context.Context, resourceType, id string) (map[string]interface{}, error) {
	var content map[string]interface{}
	err := p.pool.QueryRow(ctx,
		`SELECT content FROM fhir_resource WHERE resource_type = $1 AND id = $2`,
		resourceType, id).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(resourceType, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", resourceType, id, err)
	}
	return content, nil
}

func (p *Postgres) Update(ctx context.Context, resourceType, id string, resource map[string]interface{}) error {
	content, err := clone(resource)
	if err != nil {
		return err
	}
	var version int
	err = p.pool.QueryRow(ctx,
		`SELECT version_id FROM fhir_resource WHERE resource_type = $1 AND id = $2`,
		resourceType, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(resourceType, id)
	}
	if err != nil {
		return fmt.Errorf("read version of %s/%s: %w", resourceType, id, err)
	}
	stamp(content, resourceType, id, version+1)
	tag, err := p.pool.Exec(ctx, `
		UPDATE fhir_resource SET content = $3, version_id = $4, updated_at = NOW()
		WHERE resource_type = $1 AND id = $2`,
		resourceType, id, content, version+1)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", resourceType, id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(resourceType, id)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, resourceType, id string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM fhir_resource WHERE resource_type = $1 AND id = $2`,
		resourceType, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", resourceType, id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(resourceType, id)
	}
	return nil
}

func (p *Postgres) Search(ctx context.Context, resourceType string, params url.Values) ([]map[string]interface{}, error) {
	where, args := searchClauses(resourceType, params)
	rows, err := p.pool.Query(ctx,
		`SELECT content FROM fhir_resource WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at, id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", resourceType, err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var content map[string]interface{}
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan %s: %w", resourceType, err)
		}
		if fhir.MatchesSearch(content, params) {
			out = append(out, content)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", resourceType, err)
	}
	return out, nil
}

// searchClauses narrows a search in SQL where a parameter has a single plain
// value. The result is still filtered in Go, so the clauses only need to be
// a superset of the matches.
func searchClauses(resourceType string, params url.Values) ([]string, []interface{}) {
	where := []string{"resource_type = $1"}
	args := []interface{}{resourceType}
	single := func(name string) (string, bool) {
		values := params[name]
		if len(values) != 1 || strings.ContainsAny(values[0], ",|") || values[0] == "" {
			return "", false
		}
		return values[0], true
	}
	if v, ok := single("identifier"); ok {
		args = append(args, []map[string]interface{}{{"value": v}})
		where = append(where, fmt.Sprintf("content -> 'identifier' @> $%d", len(args)))
	}
	if v, ok := single("_profile"); ok {
		args = append(args, []string{v})
		where = append(where, fmt.Sprintf("content -> 'meta' -> 'profile' @> $%d", len(args)))
	}
	if v, ok := single("_id"); ok {
		args = append(args, v)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	}
	return where, args
}
