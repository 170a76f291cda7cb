package miabis

import (
	"time"

	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityDonor = "SampleDonor"

// SampleDonor is the person samples were taken from (FHIR Patient).
type SampleDonor struct {
	identifier  string
	gender      Gender
	dateOfBirth *time.Time
	datasetType string

	fhirID string
}

// NewSampleDonor creates a donor. Gender and dataset type are optional and
// may be left empty.
func NewSampleDonor(identifier string, gender Gender, dateOfBirth *time.Time, datasetType string) (*SampleDonor, error) {
	d := &SampleDonor{dateOfBirth: dateOfBirth}
	if err := d.SetIdentifier(identifier); err != nil {
		return nil, err
	}
	if err := d.SetGender(gender); err != nil {
		return nil, err
	}
	if err := d.SetDatasetType(datasetType); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *SampleDonor) Identifier() string          { return d.identifier }
func (d *SampleDonor) Gender() Gender              { return d.gender }
func (d *SampleDonor) DateOfBirth() *time.Time     { return d.dateOfBirth }
func (d *SampleDonor) DatasetType() string         { return d.datasetType }
func (d *SampleDonor) FHIRID() string              { return d.fhirID }
func (d *SampleDonor) SetDateOfBirth(t *time.Time) { d.dateOfBirth = t }

func (d *SampleDonor) SetIdentifier(identifier string) error {
	if err := required(entityDonor, "identifier", identifier); err != nil {
		return err
	}
	d.identifier = identifier
	return nil
}

func (d *SampleDonor) SetGender(g Gender) error {
	if g != "" {
		if err := Genders.check(entityDonor, "gender", string(g)); err != nil {
			return err
		}
	}
	d.gender = g
	return nil
}

func (d *SampleDonor) SetDatasetType(datasetType string) error {
	if datasetType != "" {
		if err := DatasetTypes.check(entityDonor, "dataset_type", datasetType); err != nil {
			return err
		}
	}
	d.datasetType = datasetType
	return nil
}

// ToFHIR serializes the donor to a Patient resource.
func (d *SampleDonor) ToFHIR() (map[string]interface{}, error) {
	result := newResource("Patient", ProfileSampleDonor, d.fhirID, d.identifier)
	if d.gender != "" {
		result["gender"] = string(d.gender)
	}
	if d.dateOfBirth != nil {
		result["birthDate"] = formatDate(d.dateOfBirth)
	}
	if d.datasetType != "" {
		result["extension"] = []fhir.Extension{codedExtension(ExtDatasetType, DatasetTypes, d.datasetType)}
	}
	return fhir.ToGeneric(result)
}

// SampleDonorFromFHIR rebuilds a donor from a stored Patient resource.
func SampleDonorFromFHIR(data map[string]interface{}) (*SampleDonor, error) {
	fhirID, err := requiredString(entityDonor, "id", data, "id")
	if err != nil {
		return nil, err
	}
	identifier, err := requiredString(entityDonor, "identifier", data, "identifier", 0, "value")
	if err != nil {
		return nil, err
	}
	birth, err := optionalTime(entityDonor, "birthDate", data, "birthDate")
	if err != nil {
		return nil, err
	}
	gender, _ := fhir.GetString(data, "gender")
	var datasetType string
	if codes := extensionCodes(data, ExtDatasetType); len(codes) > 0 {
		datasetType = codes[0]
	}
	d, err := NewSampleDonor(identifier, Gender(gender), birth, datasetType)
	if err != nil {
		return nil, err
	}
	d.fhirID = fhirID
	return d, nil
}
