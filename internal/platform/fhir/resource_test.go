package fhir

import (
	"encoding/json"
	"testing"
)

func TestResource_JSONSerialization(t *testing.T) {
	r := Resource{
		ResourceType: "Patient",
		ID:           "test-123",
		Meta: &Meta{
			VersionID: "1",
			Profile:   []string{"https://fhir.bbmri-eric.eu/StructureDefinition/miabis-sample-donor"},
		},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if parsed["resourceType"] != "Patient" {
		t.Errorf("expected Patient, got %v", parsed["resourceType"])
	}
	if parsed["id"] != "test-123" {
		t.Errorf("expected test-123, got %v", parsed["id"])
	}
	meta, _ := parsed["meta"].(map[string]interface{})
	if _, ok := meta["lastUpdated"]; ok {
		t.Error("expected lastUpdated to be omitted when unset")
	}
}

func TestExtension_OmitsUnsetValues(t *testing.T) {
	n := 3
	ext := Extension{URL: "http://example.org/ext", ValueInteger: &n}
	data, err := json.Marshal(ext)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(parsed) != 2 {
		t.Errorf("expected only url and valueInteger, got %v", parsed)
	}
	if parsed["valueInteger"] != float64(3) {
		t.Errorf("valueInteger = %v, want 3", parsed["valueInteger"])
	}
}

func TestConcept(t *testing.T) {
	c := Concept("http://hl7.org/fhir/sid/icd-10", "C18.8")
	if len(c.Coding) != 1 {
		t.Fatalf("expected 1 coding, got %d", len(c.Coding))
	}
	if c.Coding[0].System != "http://hl7.org/fhir/sid/icd-10" || c.Coding[0].Code != "C18.8" {
		t.Errorf("unexpected coding %+v", c.Coding[0])
	}
}

func TestOperationOutcome_Diagnostics(t *testing.T) {
	o := NotFoundOutcome("Patient", "p1")
	if got := o.Diagnostics(); got != "Patient/p1 not found" {
		t.Errorf("Diagnostics() = %q", got)
	}

	o.Issue = append(o.Issue, OperationOutcomeIssue{Severity: "error", Code: "invalid"})
	if got := o.Diagnostics(); got != "Patient/p1 not found; invalid" {
		t.Errorf("Diagnostics() = %q", got)
	}

	var nilOutcome *OperationOutcome
	if nilOutcome.Diagnostics() != "" {
		t.Error("expected empty diagnostics for nil outcome")
	}
}
