package miabis

import (
	"github.com/miabis/miabis/internal/domain/terminology"
	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityCondition = "Condition"

// Condition is the donor-level diagnosis; it points at the donor's
// diagnosis reports through stage assessments.
type Condition struct {
	identifier        string
	patientIdentifier string
	icd10Code         string

	fhirID                 string
	patientFHIRID          string
	diagnosisReportFHIRIDs []string
}

// NewCondition creates a condition. identifier and icd10Code are optional.
func NewCondition(identifier, patientIdentifier, icd10Code string) (*Condition, error) {
	c := &Condition{identifier: identifier}
	if err := required(entityCondition, "patient_identifier", patientIdentifier); err != nil {
		return nil, err
	}
	c.patientIdentifier = patientIdentifier
	if err := c.SetICD10Code(icd10Code); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Condition) Identifier() string        { return c.identifier }
func (c *Condition) PatientIdentifier() string { return c.patientIdentifier }
func (c *Condition) ICD10Code() string         { return c.icd10Code }
func (c *Condition) FHIRID() string            { return c.fhirID }
func (c *Condition) PatientFHIRID() string     { return c.patientFHIRID }

func (c *Condition) DiagnosisReportFHIRIDs() []string {
	return copyStrings(c.diagnosisReportFHIRIDs)
}

func (c *Condition) SetICD10Code(code string) error {
	if code != "" && !terminology.IsValidICD10(code) {
		return &ValidationError{Entity: entityCondition, Field: "icd10_code", Value: code, Err: ErrValueNotAllowed}
	}
	c.icd10Code = code
	return nil
}

// AddDiagnosisReport links a report by FHIR id. Adding a linked report is a
// no-op.
func (c *Condition) AddDiagnosisReport(fhirID string) {
	if fhirID == "" || containsString(c.diagnosisReportFHIRIDs, fhirID) {
		return
	}
	c.diagnosisReportFHIRIDs = append(c.diagnosisReportFHIRIDs, fhirID)
}

// RemoveDiagnosisReport unlinks a report and reports whether it was linked.
func (c *Condition) RemoveDiagnosisReport(fhirID string) bool {
	var i int
	c.diagnosisReportFHIRIDs, i = removeString(c.diagnosisReportFHIRIDs, fhirID)
	return i >= 0
}

// ToFHIR serializes the condition. An empty patientFHIRID falls back to the
// cached one.
func (c *Condition) ToFHIR(patientFHIRID string) (map[string]interface{}, error) {
	if patientFHIRID == "" {
		patientFHIRID = c.patientFHIRID
	}
	if patientFHIRID == "" {
		return nil, missingRef(entityCondition, "Patient "+c.patientIdentifier)
	}
	result := newResource("Condition", ProfileCondition, c.fhirID, c.identifier)
	result["subject"] = reference("Patient", patientFHIRID)
	if c.icd10Code != "" {
		result["code"] = fhir.Concept(terminology.SystemICD10, terminology.NormalizeICD10(c.icd10Code))
	}
	if len(c.diagnosisReportFHIRIDs) > 0 {
		stage := fhir.ConditionStage{}
		for _, id := range c.diagnosisReportFHIRIDs {
			stage.Assessment = append(stage.Assessment, reference("DiagnosticReport", id))
		}
		result["stage"] = []fhir.ConditionStage{stage}
	}
	return fhir.ToGeneric(result)
}

// ConditionFromFHIR rebuilds a condition from a stored resource.
func ConditionFromFHIR(data map[string]interface{}, patientIdentifier string) (*Condition, error) {
	fhirID, err := requiredString(entityCondition, "id", data, "id")
	if err != nil {
		return nil, err
	}
	patient, err := requiredReference(entityCondition, "subject", data, "Patient", "subject")
	if err != nil {
		return nil, err
	}
	identifier, _ := fhir.GetString(data, "identifier", 0, "value")
	code, _ := fhir.GetString(data, "code", "coding", 0, "code")
	c, err := NewCondition(identifier, patientIdentifier, code)
	if err != nil {
		return nil, err
	}
	c.fhirID = fhirID
	c.patientFHIRID = patient
	c.diagnosisReportFHIRIDs = referenceIDs(data, "DiagnosticReport", "stage", 0, "assessment")
	return c, nil
}
