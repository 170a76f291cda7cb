package miabis

import (
	"time"

	"github.com/miabis/miabis/internal/domain/terminology"
	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityObservation = "Observation"

// Observation records one ICD-10 diagnosis made on a sample.
type Observation struct {
	identifier                string
	icd10Code                 string
	sampleIdentifier          string
	patientIdentifier         string
	diagnosisObservedDatetime *time.Time

	fhirID        string
	patientFHIRID string
	sampleFHIRID  string
}

// ObservationIdentifier derives the identifier an observation gets when none
// is given: the sample identifier joined with the diagnosis code.
func ObservationIdentifier(sampleIdentifier, icd10Code string) string {
	return sampleIdentifier + "_" + icd10Code
}

// NewObservation creates an observation. An empty identifier is derived from
// the sample identifier and the code.
func NewObservation(identifier, icd10Code, sampleIdentifier, patientIdentifier string, observedAt *time.Time) (*Observation, error) {
	o := &Observation{diagnosisObservedDatetime: observedAt}
	if err := o.SetICD10Code(icd10Code); err != nil {
		return nil, err
	}
	if err := o.SetSampleIdentifier(sampleIdentifier); err != nil {
		return nil, err
	}
	if err := o.SetPatientIdentifier(patientIdentifier); err != nil {
		return nil, err
	}
	if identifier == "" {
		identifier = ObservationIdentifier(sampleIdentifier, icd10Code)
	}
	o.identifier = identifier
	return o, nil
}

func (o *Observation) Identifier() string                    { return o.identifier }
func (o *Observation) ICD10Code() string                     { return o.icd10Code }
func (o *Observation) SampleIdentifier() string              { return o.sampleIdentifier }
func (o *Observation) PatientIdentifier() string             { return o.patientIdentifier }
func (o *Observation) DiagnosisObservedDatetime() *time.Time { return o.diagnosisObservedDatetime }
func (o *Observation) FHIRID() string                        { return o.fhirID }
func (o *Observation) PatientFHIRID() string                 { return o.patientFHIRID }
func (o *Observation) SampleFHIRID() string                  { return o.sampleFHIRID }

func (o *Observation) SetICD10Code(code string) error {
	if err := required(entityObservation, "icd10_code", code); err != nil {
		return err
	}
	if !terminology.IsValidICD10(code) {
		return &ValidationError{Entity: entityObservation, Field: "icd10_code", Value: code, Err: ErrValueNotAllowed}
	}
	o.icd10Code = code
	return nil
}

func (o *Observation) SetSampleIdentifier(identifier string) error {
	if err := required(entityObservation, "sample_identifier", identifier); err != nil {
		return err
	}
	o.sampleIdentifier = identifier
	return nil
}

func (o *Observation) SetPatientIdentifier(identifier string) error {
	if err := required(entityObservation, "patient_identifier", identifier); err != nil {
		return err
	}
	o.patientIdentifier = identifier
	return nil
}

func (o *Observation) SetDiagnosisObservedDatetime(t *time.Time) { o.diagnosisObservedDatetime = t }

// ToFHIR serializes the observation. Empty arguments fall back to the cached
// FHIR ids.
func (o *Observation) ToFHIR(patientFHIRID, sampleFHIRID string) (map[string]interface{}, error) {
	if patientFHIRID == "" {
		patientFHIRID = o.patientFHIRID
	}
	if sampleFHIRID == "" {
		sampleFHIRID = o.sampleFHIRID
	}
	if patientFHIRID == "" {
		return nil, missingRef(entityObservation, "Patient "+o.patientIdentifier)
	}
	if sampleFHIRID == "" {
		return nil, missingRef(entityObservation, "Specimen "+o.sampleIdentifier)
	}
	result := newResource("Observation", ProfileObservation, o.fhirID, o.identifier)
	result["status"] = "final"
	result["code"] = fhir.Concept(loincSystem, diagnosisLOINC)
	result["valueCodeableConcept"] = fhir.Concept(terminology.SystemICD10, terminology.NormalizeICD10(o.icd10Code))
	result["subject"] = reference("Patient", patientFHIRID)
	result["specimen"] = reference("Specimen", sampleFHIRID)
	if o.diagnosisObservedDatetime != nil {
		result["effectiveDateTime"] = formatDateTime(o.diagnosisObservedDatetime)
	}
	return fhir.ToGeneric(result)
}

// ObservationFromFHIR rebuilds an observation from a stored resource.
func ObservationFromFHIR(data map[string]interface{}, sampleIdentifier, patientIdentifier string) (*Observation, error) {
	fhirID, err := requiredString(entityObservation, "id", data, "id")
	if err != nil {
		return nil, err
	}
	code, err := requiredString(entityObservation, "valueCodeableConcept", data, "valueCodeableConcept", "coding", 0, "code")
	if err != nil {
		return nil, err
	}
	patient, err := requiredReference(entityObservation, "subject", data, "Patient", "subject")
	if err != nil {
		return nil, err
	}
	sample, err := requiredReference(entityObservation, "specimen", data, "Specimen", "specimen")
	if err != nil {
		return nil, err
	}
	observed, err := optionalTime(entityObservation, "effectiveDateTime", data, "effectiveDateTime")
	if err != nil {
		return nil, err
	}
	identifier, _ := fhir.GetString(data, "identifier", 0, "value")
	o, err := NewObservation(identifier, code, sampleIdentifier, patientIdentifier, observed)
	if err != nil {
		return nil, err
	}
	o.fhirID = fhirID
	o.patientFHIRID = patient
	o.sampleFHIRID = sample
	return o, nil
}
