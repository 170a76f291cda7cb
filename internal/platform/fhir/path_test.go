package fhir

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestGet_NullSafe(t *testing.T) {
	doc := decode(t, `{"collection": {"bodySite": {"coding": [{"code": "C50", "system": "icd"}]}}}`)

	if code, ok := GetString(doc, "collection", "bodySite", "coding", 0, "code"); !ok || code != "C50" {
		t.Errorf("GetString = (%q, %v), want (C50, true)", code, ok)
	}
	missing := [][]interface{}{
		{"collection", "missing", "coding"},
		{"collection", "bodySite", "coding", 5, "code"},
		{"collection", "bodySite", "coding", "code"},
		{"collection", 0},
		{"collection", "bodySite", "coding", -1},
	}
	for _, p := range missing {
		if v := Get(doc, p...); v != nil {
			t.Errorf("Get(%v) = %v, want nil", p, v)
		}
	}
	if Get(nil, "a") != nil {
		t.Error("Get(nil) should be nil")
	}
}

func TestGetNumberAndSlice(t *testing.T) {
	doc := decode(t, `{"extension": [{"valueInteger": 4}], "name": "x"}`)
	if n, ok := GetNumber(doc, "extension", 0, "valueInteger"); !ok || n != 4 {
		t.Errorf("GetNumber = (%v, %v), want (4, true)", n, ok)
	}
	if _, ok := GetNumber(doc, "name"); ok {
		t.Error("GetNumber on string should fail")
	}
	if len(GetSlice(doc, "extension")) != 1 {
		t.Error("GetSlice should return the extension array")
	}
	if GetSlice(doc, "name") != nil {
		t.Error("GetSlice on string should be nil")
	}
	if GetMap(doc, "extension", 0) == nil {
		t.Error("GetMap should return the first extension")
	}
}

func TestToGeneric(t *testing.T) {
	m, err := ToGeneric(map[string]interface{}{
		"resourceType": "Specimen",
		"subject":      Reference{Reference: "Patient/p1"},
	})
	if err != nil {
		t.Fatalf("ToGeneric: %v", err)
	}
	if ref, _ := GetString(m, "subject", "reference"); ref != "Patient/p1" {
		t.Errorf("subject.reference = %q, want Patient/p1", ref)
	}
}
