package terminology

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeICD10(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"C188", "C18.8"},
		{"C18.8", "C18.8"},
		{"C51", "C51"},
		{"M8000", "M8000"},
		{"E23.1", "E23.1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeICD10(tt.in); got != tt.want {
			t.Errorf("NormalizeICD10(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeICD10_Idempotent(t *testing.T) {
	for _, code := range []string{"C188", "C18.8", "A01", "Z992"} {
		once := NormalizeICD10(code)
		if twice := NormalizeICD10(once); twice != once {
			t.Errorf("NormalizeICD10 not idempotent for %q: %q then %q", code, once, twice)
		}
	}
}

func TestIsValidICD10(t *testing.T) {
	valid := []string{"C18.8", "C188", "C51", "E23", "A00", "A00.9", "Z99.2", "T98", "U07.1", "U84", "E11.9", "V43"}
	for _, c := range valid {
		if !IsValidICD10(c) {
			t.Errorf("expected %q to be valid", c)
		}
	}
	invalid := []string{"", "c18", "C1", "C18.", "C18.888", "D49", "K95", "E91", "W", "123", "C18-8"}
	for _, c := range invalid {
		if IsValidICD10(c) {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

// Well-formed codes that are not part of the classification.
func TestIsValidICD10_UnknownCodes(t *testing.T) {
	for _, c := range []string{"C99", "A00.99", "A0099", "B9999", "A00.5", "C19.0", "C199", "U99", "M80.00"} {
		if IsValidICD10(c) {
			t.Errorf("expected %q to be rejected", c)
		}
	}
}

func TestLookupICD10(t *testing.T) {
	code, err := LookupICD10("C188")
	if err != nil {
		t.Fatalf("LookupICD10: %v", err)
	}
	if code.Code != "C18.8" {
		t.Errorf("Code = %q, want C18.8", code.Code)
	}
	if code.Category != "C18" {
		t.Errorf("Category = %q, want C18", code.Category)
	}
	if code.Chapter != "II" || code.ChapterTitle != "Neoplasms" {
		t.Errorf("Chapter = %q %q", code.Chapter, code.ChapterTitle)
	}
	if code.Title != "Malignant neoplasm of colon" {
		t.Errorf("Title = %q", code.Title)
	}
	if code.SystemURI != SystemICD10 {
		t.Errorf("SystemURI = %q", code.SystemURI)
	}

	if _, err := LookupICD10("X1"); err == nil {
		t.Error("expected error for malformed code")
	}
	if _, err := LookupICD10("C99"); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("LookupICD10(C99) = %v, want ErrCodeNotFound", err)
	}
}

// undottedRepo stores codes without the period, the way some code tables do.
type undottedRepo struct {
	codes map[string]*ICD10Code
	asked []string
}

func (r *undottedRepo) Search(context.Context, string, int) ([]*ICD10Code, error) { return nil, nil }

func (r *undottedRepo) GetByCode(_ context.Context, code string) (*ICD10Code, error) {
	r.asked = append(r.asked, code)
	if c, ok := r.codes[code]; ok {
		return c, nil
	}
	return nil, ErrCodeNotFound
}

func TestResolve_TriesBothForms(t *testing.T) {
	repo := &undottedRepo{codes: map[string]*ICD10Code{"C188": {Code: "C188"}}}
	for _, in := range []string{"C188", "C18.8"} {
		repo.asked = nil
		got, err := Resolve(context.Background(), repo, in)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", in, err)
		}
		if got.Code != "C188" {
			t.Errorf("Resolve(%q) = %q", in, got.Code)
		}
		if len(repo.asked) != 2 || repo.asked[0] != "C18.8" || repo.asked[1] != "C188" {
			t.Errorf("lookups = %v, want [C18.8 C188]", repo.asked)
		}
	}

	repo.asked = nil
	if _, err := Resolve(context.Background(), repo, "C99"); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("Resolve(C99) = %v, want ErrCodeNotFound", err)
	}
	if len(repo.asked) != 1 {
		t.Errorf("a category has no undotted form, lookups = %v", repo.asked)
	}
}

func TestResolve_RepositoryError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := Resolve(context.Background(), failingRepo{boom}, "C18.8")
	if !errors.Is(err, boom) {
		t.Errorf("Resolve = %v, want %v", err, boom)
	}
}

type failingRepo struct{ err error }

func (r failingRepo) Search(context.Context, string, int) ([]*ICD10Code, error) { return nil, r.err }
func (r failingRepo) GetByCode(context.Context, string) (*ICD10Code, error)       { return nil, r.err }
