package fhirstore

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/miabis/miabis/internal/platform/fhir"
)

func patient(identifier string) map[string]interface{} {
	return map[string]interface{}{
		"resourceType": "Patient",
		"identifier":   []interface{}{map[string]interface{}{"value": identifier}},
	}
}

func TestMemory_CreateRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Create(ctx, "Patient", patient("donor-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	got, err := m.Read(ctx, "Patient", id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got["id"] != id {
		t.Errorf("id = %v, want %v", got["id"], id)
	}
	if v, _ := fhir.GetString(got, "meta", "versionId"); v != "1" {
		t.Errorf("versionId = %q, want 1", v)
	}
	if v, _ := fhir.GetString(got, "identifier", 0, "value"); v != "donor-1" {
		t.Errorf("identifier = %q, want donor-1", v)
	}
}

func TestMemory_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := patient("donor-1")
	id, _ := m.Create(ctx, "Patient", in)

	in["gender"] = "male"
	got, _ := m.Read(ctx, "Patient", id)
	if _, ok := got["gender"]; ok {
		t.Error("store must not alias the caller's map")
	}
	got["gender"] = "female"
	again, _ := m.Read(ctx, "Patient", id)
	if _, ok := again["gender"]; ok {
		t.Error("store must not alias returned maps")
	}
}

func TestMemory_NotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Read(ctx, "Patient", "missing"); !errors.Is(err, fhir.ErrResourceNotFound) {
		t.Errorf("Read error = %v, want ErrResourceNotFound", err)
	}
	if err := m.Update(ctx, "Patient", "missing", patient("x")); !errors.Is(err, fhir.ErrResourceNotFound) {
		t.Errorf("Update error = %v, want ErrResourceNotFound", err)
	}
	if err := m.Delete(ctx, "Patient", "missing"); !errors.Is(err, fhir.ErrResourceNotFound) {
		t.Errorf("Delete error = %v, want ErrResourceNotFound", err)
	}
}

func TestMemory_UpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.Create(ctx, "Patient", patient("donor-1"))

	updated := patient("donor-1")
	updated["gender"] = "female"
	if err := m.Update(ctx, "Patient", id, updated); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := m.Read(ctx, "Patient", id)
	if got["gender"] != "female" {
		t.Errorf("gender = %v, want female", got["gender"])
	}
	if v, _ := fhir.GetString(got, "meta", "versionId"); v != "2" {
		t.Errorf("versionId = %q, want 2", v)
	}
	if got["id"] != id {
		t.Errorf("id = %v, want %v", got["id"], id)
	}
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.Create(ctx, "Patient", patient("donor-1"))

	if err := m.Delete(ctx, "Patient", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Count("Patient") != 0 {
		t.Errorf("Count = %d, want 0", m.Count("Patient"))
	}
}

func TestMemory_Search(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p1, _ := m.Create(ctx, "Patient", patient("donor-1"))
	p2, _ := m.Create(ctx, "Patient", patient("donor-2"))
	for _, pid := range []string{p1, p2, p1} {
		_, err := m.Create(ctx, "Specimen", map[string]interface{}{
			"subject": map[string]interface{}{"reference": "Patient/" + pid},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.Search(ctx, "Patient", url.Values{"identifier": {"donor-2"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != p2 {
		t.Errorf("identifier search = %v, want [%s]", got, p2)
	}

	specimens, err := m.Search(ctx, "Specimen", url.Values{"subject": {"Patient/" + p1}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(specimens) != 2 {
		t.Errorf("subject search returned %d, want 2", len(specimens))
	}

	all, _ := m.Search(ctx, "Patient", nil)
	if len(all) != 2 || all[0]["id"] != p1 || all[1]["id"] != p2 {
		t.Errorf("expected creation order [%s %s], got %v", p1, p2, all)
	}

	none, _ := m.Search(ctx, "Observation", url.Values{"subject": {"Patient/" + p1}})
	if len(none) != 0 {
		t.Errorf("expected no observations, got %d", len(none))
	}
}
