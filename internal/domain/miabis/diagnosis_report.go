package miabis

import (
	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityDiagnosisReport = "DiagnosisReport"

// DiagnosisReport groups the observations made on one sample.
type DiagnosisReport struct {
	identifier             string
	sampleIdentifier       string
	patientIdentifier      string
	observationIdentifiers []string

	fhirID             string
	sampleFHIRID       string
	patientFHIRID      string
	observationFHIRIDs []string
}

// NewDiagnosisReport creates a report. An empty identifier defaults to the
// sample identifier.
func NewDiagnosisReport(identifier, sampleIdentifier, patientIdentifier string, observationIdentifiers []string) (*DiagnosisReport, error) {
	r := &DiagnosisReport{}
	if err := required(entityDiagnosisReport, "sample_identifier", sampleIdentifier); err != nil {
		return nil, err
	}
	if err := required(entityDiagnosisReport, "patient_identifier", patientIdentifier); err != nil {
		return nil, err
	}
	if identifier == "" {
		identifier = sampleIdentifier
	}
	r.identifier = identifier
	r.sampleIdentifier = sampleIdentifier
	r.patientIdentifier = patientIdentifier
	r.observationIdentifiers = copyStrings(observationIdentifiers)
	return r, nil
}

func (r *DiagnosisReport) Identifier() string           { return r.identifier }
func (r *DiagnosisReport) SampleIdentifier() string     { return r.sampleIdentifier }
func (r *DiagnosisReport) PatientIdentifier() string    { return r.patientIdentifier }
func (r *DiagnosisReport) FHIRID() string               { return r.fhirID }
func (r *DiagnosisReport) SampleFHIRID() string         { return r.sampleFHIRID }
func (r *DiagnosisReport) PatientFHIRID() string        { return r.patientFHIRID }
func (r *DiagnosisReport) ObservationFHIRIDs() []string { return copyStrings(r.observationFHIRIDs) }

func (r *DiagnosisReport) ObservationIdentifiers() []string {
	return copyStrings(r.observationIdentifiers)
}

// SetObservationIdentifiers replaces the observation list. Cached observation
// FHIR ids are dropped since they no longer line up.
func (r *DiagnosisReport) SetObservationIdentifiers(identifiers []string) {
	r.observationIdentifiers = copyStrings(identifiers)
	r.observationFHIRIDs = nil
}

// RemoveObservation drops the observation with the given FHIR id together
// with its organizational identifier. It reports whether it was present.
func (r *DiagnosisReport) RemoveObservation(fhirID string) bool {
	var i int
	r.observationFHIRIDs, i = removeString(r.observationFHIRIDs, fhirID)
	if i < 0 {
		return false
	}
	if i < len(r.observationIdentifiers) {
		r.observationIdentifiers = append(r.observationIdentifiers[:i:i], r.observationIdentifiers[i+1:]...)
	}
	return true
}

// ToFHIR serializes the report to a DiagnosticReport. Empty or nil arguments
// fall back to the cached FHIR ids.
func (r *DiagnosisReport) ToFHIR(sampleFHIRID, patientFHIRID string, observationFHIRIDs []string) (map[string]interface{}, error) {
	if sampleFHIRID == "" {
		sampleFHIRID = r.sampleFHIRID
	}
	if patientFHIRID == "" {
		patientFHIRID = r.patientFHIRID
	}
	if observationFHIRIDs == nil {
		observationFHIRIDs = r.observationFHIRIDs
	}
	if sampleFHIRID == "" {
		return nil, missingRef(entityDiagnosisReport, "Specimen "+r.sampleIdentifier)
	}
	if patientFHIRID == "" {
		return nil, missingRef(entityDiagnosisReport, "Patient "+r.patientIdentifier)
	}
	if len(observationFHIRIDs) < len(r.observationIdentifiers) {
		return nil, missingRef(entityDiagnosisReport, "Observation "+r.observationIdentifiers[len(observationFHIRIDs)])
	}

	result := newResource("DiagnosticReport", ProfileDiagnosisReport, r.fhirID, r.identifier)
	result["status"] = "final"
	result["code"] = fhir.Concept(loincSystem, diagnosisLOINC)
	result["subject"] = reference("Patient", patientFHIRID)
	result["specimen"] = []fhir.Reference{reference("Specimen", sampleFHIRID)}
	if len(observationFHIRIDs) > 0 {
		results := make([]fhir.Reference, 0, len(observationFHIRIDs))
		for _, id := range observationFHIRIDs {
			results = append(results, reference("Observation", id))
		}
		result["result"] = results
	}
	return fhir.ToGeneric(result)
}

// DiagnosisReportFromFHIR rebuilds a report from a stored DiagnosticReport.
// observationIdentifiers must follow the order of the result references.
func DiagnosisReportFromFHIR(data map[string]interface{}, sampleIdentifier, patientIdentifier string, observationIdentifiers []string) (*DiagnosisReport, error) {
	fhirID, err := requiredString(entityDiagnosisReport, "id", data, "id")
	if err != nil {
		return nil, err
	}
	patient, err := requiredReference(entityDiagnosisReport, "subject", data, "Patient", "subject")
	if err != nil {
		return nil, err
	}
	sample, err := requiredReference(entityDiagnosisReport, "specimen", data, "Specimen", "specimen", 0)
	if err != nil {
		return nil, err
	}
	identifier, _ := fhir.GetString(data, "identifier", 0, "value")
	r, err := NewDiagnosisReport(identifier, sampleIdentifier, patientIdentifier, observationIdentifiers)
	if err != nil {
		return nil, err
	}
	r.fhirID = fhirID
	r.patientFHIRID = patient
	r.sampleFHIRID = sample
	r.observationFHIRIDs = referenceIDs(data, "Observation", "result")
	return r, nil
}
