package terminology

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ICD10RepoPG reads codes from the reference_icd10 table.
type ICD10RepoPG struct{ db queryable }

// NewICD10RepoPG accepts a *pgxpool.Pool or a pgx.Tx.
func NewICD10RepoPG(db queryable) *ICD10RepoPG { return &ICD10RepoPG{db: db} }

func (r *ICD10RepoPG) Search(ctx context.Context, query string, limit int) ([]*ICD10Code, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT code, category, chapter, title, chapter_title, system_uri
		 FROM reference_icd10
		 WHERE code ILIKE $1 || '%' OR title ILIKE '%' || $1 || '%'
		 ORDER BY code LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("icd10 search: %w", err)
	}
	defer rows.Close()
	var results []*ICD10Code
	for rows.Next() {
		var c ICD10Code
		if err := rows.Scan(&c.Code, &c.Category, &c.Chapter, &c.Title, &c.ChapterTitle, &c.SystemURI); err != nil {
			return nil, err
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}

func (r *ICD10RepoPG) GetByCode(ctx context.Context, code string) (*ICD10Code, error) {
	var c ICD10Code
	err := r.db.QueryRow(ctx,
		`SELECT code, category, chapter, title, chapter_title, system_uri
		 FROM reference_icd10 WHERE code = $1`, code).
		Scan(&c.Code, &c.Category, &c.Chapter, &c.Title, &c.ChapterTitle, &c.SystemURI)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrCodeNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("icd10 get: %w", err)
	}
	return &c, nil
}

// Load inserts every code of t that the table does not hold yet and returns
// the number of rows added.
func (r *ICD10RepoPG) Load(ctx context.Context, t *Table) (int64, error) {
	b := &pgx.Batch{}
	for _, c := range t.ordered {
		b.Queue(`INSERT INTO reference_icd10 (code, category, chapter, title, chapter_title, system_uri)
			VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (code) DO NOTHING`,
			c.Code, c.Category, c.Chapter, c.Title, c.ChapterTitle, c.SystemURI)
	}
	results := r.db.SendBatch(ctx, b)
	defer results.Close()
	var added int64
	for i := 0; i < b.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return added, fmt.Errorf("icd10 load: %w", err)
		}
		added += tag.RowsAffected()
	}
	return added, nil
}
