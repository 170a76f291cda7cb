package fhirstore

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"testing"

	"github.com/miabis/miabis/internal/platform/db"
	"github.com/miabis/miabis/internal/platform/fhir"
)

func TestMigrations(t *testing.T) {
	names, err := fs.Glob(Migrations(), "*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "001_fhir_resource.sql" || names[1] != "002_reference_icd10.sql" {
		t.Errorf("migrations = %v", names)
	}
	migrations, err := db.NewMigrator(nil, Migrations(), "").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 2 || migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("unexpected migrations %+v", migrations)
	}
}

func TestSearchClauses(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
		where  int
	}{
		{"type only", nil, 1},
		{"identifier", url.Values{"identifier": {"donor-1"}}, 2},
		{"identifier with system", url.Values{"identifier": {"sys|donor-1"}}, 1},
		{"identifier alternatives", url.Values{"identifier": {"a,b"}}, 1},
		{"profile and id", url.Values{"_profile": {"p"}, "_id": {"x"}}, 3},
		{"reference only", url.Values{"subject": {"Patient/1"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := searchClauses("Patient", tt.params)
			if len(where) != tt.where {
				t.Errorf("len(where) = %d, want %d (%v)", len(where), tt.where, where)
			}
			if len(args) != len(where) {
				t.Errorf("len(args) = %d, want %d", len(args), len(where))
			}
			if args[0] != "Patient" {
				t.Errorf("args[0] = %v, want Patient", args[0])
			}
		})
	}
}

// TestPostgres_RoundTrip runs against a real database when
// MIABIS_TEST_DATABASE_URL is set.
func TestPostgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("MIABIS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MIABIS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: dsn, MaxConns: 2})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()
	if _, err := Migrate(ctx, pool, "public"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	store := NewPostgres(pool)
	id, err := store.Create(ctx, "Patient", patient("pg-donor"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer store.Delete(ctx, "Patient", id)

	found, err := store.Search(ctx, "Patient", url.Values{"identifier": {"pg-donor"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 || found[0]["id"] != id {
		t.Errorf("Search = %v, want one match with id %s", found, id)
	}

	if err := store.Update(ctx, "Patient", id, patient("pg-donor")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.Read(ctx, "Patient", id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v, _ := fhir.GetString(got, "meta", "versionId"); v != "2" {
		t.Errorf("versionId = %q, want 2", v)
	}

	if err := store.Delete(ctx, "Patient", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Read(ctx, "Patient", id); !errors.Is(err, fhir.ErrResourceNotFound) {
		t.Errorf("Read after delete = %v, want ErrResourceNotFound", err)
	}
}
