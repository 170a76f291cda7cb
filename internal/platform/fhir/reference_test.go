package fhir

import "testing"

func TestFormatReference(t *testing.T) {
	if got := FormatReference("Patient", "abc"); got != "Patient/abc" {
		t.Errorf("FormatReference = %q, want Patient/abc", got)
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref    string
		rt, id string
		ok     bool
	}{
		{"Patient/abc", "Patient", "abc", true},
		{"http://blaze:8080/fhir/Specimen/s1", "Specimen", "s1", true},
		{"Observation/o1/_history/3", "Observation", "o1", true},
		{"abc", "", "", false},
		{"Patient/", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		rt, id, ok := ParseReference(tt.ref)
		if rt != tt.rt || id != tt.id || ok != tt.ok {
			t.Errorf("ParseReference(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.ref, rt, id, ok, tt.rt, tt.id, tt.ok)
		}
	}
}

func TestReferenceID(t *testing.T) {
	if got := ReferenceID("Specimen/s1", "Specimen"); got != "s1" {
		t.Errorf("ReferenceID = %q, want s1", got)
	}
	if got := ReferenceID("Patient/p1", "Specimen"); got != "" {
		t.Errorf("ReferenceID with wrong type = %q, want empty", got)
	}
}
