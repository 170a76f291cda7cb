package fhir

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewSearchBundleWithLinks(t *testing.T) {
	resources := []map[string]interface{}{
		{"id": "1", "resourceType": "Patient"},
		{"id": "2", "resourceType": "Patient"},
	}

	bundle := NewSearchBundleWithLinks(resources, SearchBundleParams{
		BaseURL:  "http://blaze/fhir/Patient",
		QueryStr: "identifier=d1",
		Count:    2,
		Offset:   0,
		Total:    5,
	})

	if bundle.ResourceType != "Bundle" {
		t.Errorf("expected resourceType Bundle, got %s", bundle.ResourceType)
	}
	if bundle.Type != "searchset" {
		t.Errorf("expected type searchset, got %s", bundle.Type)
	}
	if *bundle.Total != 5 {
		t.Errorf("expected total 5, got %d", *bundle.Total)
	}
	if len(bundle.Entry) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(bundle.Entry))
	}
	if bundle.Entry[0].FullURL != "Patient/1" {
		t.Errorf("unexpected fullUrl %q", bundle.Entry[0].FullURL)
	}
	next := bundle.NextLink()
	if !strings.Contains(next, "_offset=2") || !strings.Contains(next, "identifier=d1") {
		t.Errorf("unexpected next link %q", next)
	}
}

func TestNewSearchBundleWithLinks_LastPage(t *testing.T) {
	bundle := NewSearchBundleWithLinks(nil, SearchBundleParams{BaseURL: "/Patient", Count: 10, Offset: 10, Total: 12})
	if bundle.NextLink() != "" {
		t.Errorf("expected no next link on last page, got %q", bundle.NextLink())
	}
}

func TestBundle_Resources(t *testing.T) {
	raw := `{
		"resourceType": "Bundle",
		"type": "searchset",
		"entry": [
			{"resource": {"resourceType": "Specimen", "id": "s1"}, "search": {"mode": "match"}},
			{"resource": {"resourceType": "Patient", "id": "p1"}, "search": {"mode": "include"}},
			{"resource": {"resourceType": "Specimen", "id": "s2"}}
		]
	}`
	var b Bundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	resources, err := b.Resources()
	if err != nil {
		t.Fatalf("Resources: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 matched resources, got %d", len(resources))
	}
	if resources[0]["id"] != "s1" || resources[1]["id"] != "s2" {
		t.Errorf("unexpected resources %v", resources)
	}
}
