package miabis

import (
	"time"

	"github.com/miabis/miabis/internal/platform/fhir"
)

const entitySample = "Sample"

// Sample is a specimen taken from a donor (FHIR Specimen).
type Sample struct {
	identifier         string
	donorIdentifier    string
	materialType       MaterialType
	collectedDatetime  *time.Time
	bodySite           string
	bodySiteSystem     string
	storageTemperature StorageTemperature
	useRestrictions    string
	sampleCollectionID string

	fhirID        string
	subjectFHIRID string
}

func NewSample(identifier, donorIdentifier string, materialType MaterialType) (*Sample, error) {
	s := &Sample{}
	if err := s.SetIdentifier(identifier); err != nil {
		return nil, err
	}
	if err := s.SetDonorIdentifier(donorIdentifier); err != nil {
		return nil, err
	}
	if err := s.SetMaterialType(materialType); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sample) Identifier() string                     { return s.identifier }
func (s *Sample) DonorIdentifier() string                { return s.donorIdentifier }
func (s *Sample) MaterialType() MaterialType             { return s.materialType }
func (s *Sample) CollectedDatetime() *time.Time          { return s.collectedDatetime }
func (s *Sample) BodySite() string                       { return s.bodySite }
func (s *Sample) BodySiteSystem() string                 { return s.bodySiteSystem }
func (s *Sample) StorageTemperature() StorageTemperature { return s.storageTemperature }
func (s *Sample) UseRestrictions() string                { return s.useRestrictions }
func (s *Sample) SampleCollectionID() string             { return s.sampleCollectionID }
func (s *Sample) FHIRID() string                         { return s.fhirID }
func (s *Sample) SubjectFHIRID() string                  { return s.subjectFHIRID }

func (s *Sample) SetIdentifier(identifier string) error {
	if err := required(entitySample, "identifier", identifier); err != nil {
		return err
	}
	s.identifier = identifier
	return nil
}

func (s *Sample) SetDonorIdentifier(donorIdentifier string) error {
	if err := required(entitySample, "donor_identifier", donorIdentifier); err != nil {
		return err
	}
	s.donorIdentifier = donorIdentifier
	return nil
}

func (s *Sample) SetMaterialType(m MaterialType) error {
	if err := MaterialTypes.check(entitySample, "material_type", string(m)); err != nil {
		return err
	}
	s.materialType = m
	return nil
}

func (s *Sample) SetStorageTemperature(t StorageTemperature) error {
	if t != "" {
		if err := StorageTemperatures.check(entitySample, "storage_temperature", string(t)); err != nil {
			return err
		}
	}
	s.storageTemperature = t
	return nil
}

func (s *Sample) SetCollectedDatetime(t *time.Time) { s.collectedDatetime = t }

// SetBodySite sets the anatomical site the sample was collected from, coded
// in system.
func (s *Sample) SetBodySite(code, system string) {
	s.bodySite = code
	s.bodySiteSystem = system
}

func (s *Sample) SetUseRestrictions(text string) { s.useRestrictions = text }

// SetSampleCollectionID records the organizational identifier of the
// collection the sample belongs to.
func (s *Sample) SetSampleCollectionID(id string) { s.sampleCollectionID = id }

// ToFHIR serializes the sample to a Specimen resource. donorFHIRID overrides
// the cached donor id when not empty.
func (s *Sample) ToFHIR(donorFHIRID string) (map[string]interface{}, error) {
	if donorFHIRID == "" {
		donorFHIRID = s.subjectFHIRID
	}
	if donorFHIRID == "" {
		return nil, missingRef(entitySample, "Patient "+s.donorIdentifier)
	}
	result := newResource("Specimen", ProfileSample, s.fhirID, s.identifier)
	result["subject"] = reference("Patient", donorFHIRID)
	result["type"] = fhir.Concept(MaterialTypes.System, string(s.materialType))

	if s.collectedDatetime != nil || s.bodySite != "" {
		collection := map[string]interface{}{}
		if s.collectedDatetime != nil {
			collection["collectedDateTime"] = formatDateTime(s.collectedDatetime)
		}
		if s.bodySite != "" {
			collection["bodySite"] = fhir.Concept(s.bodySiteSystem, s.bodySite)
		}
		result["collection"] = collection
	}

	var ext []fhir.Extension
	if s.storageTemperature != "" {
		ext = append(ext, codedExtension(ExtStorageTemperature, StorageTemperatures, string(s.storageTemperature)))
	}
	if s.sampleCollectionID != "" {
		ext = append(ext, fhir.Extension{URL: ExtSampleCollectionID.URL(), ValueIdentifier: &fhir.Identifier{Value: s.sampleCollectionID}})
	}
	if len(ext) > 0 {
		result["extension"] = ext
	}
	if s.useRestrictions != "" {
		result["note"] = []fhir.Annotation{{Text: s.useRestrictions}}
	}
	return fhir.ToGeneric(result)
}

// SampleFromFHIR rebuilds a sample from a stored Specimen resource. The wire
// format only carries the donor's FHIR id, so its organizational identifier
// must be supplied.
func SampleFromFHIR(data map[string]interface{}, donorIdentifier string) (*Sample, error) {
	fhirID, err := requiredString(entitySample, "id", data, "id")
	if err != nil {
		return nil, err
	}
	identifier, err := requiredString(entitySample, "identifier", data, "identifier", 0, "value")
	if err != nil {
		return nil, err
	}
	subject, err := requiredReference(entitySample, "subject", data, "Patient", "subject")
	if err != nil {
		return nil, err
	}
	material, err := requiredString(entitySample, "type", data, "type", "coding", 0, "code")
	if err != nil {
		return nil, err
	}
	collected, err := optionalTime(entitySample, "collection.collectedDateTime", data, "collection", "collectedDateTime")
	if err != nil {
		return nil, err
	}

	s, err := NewSample(identifier, donorIdentifier, MaterialType(material))
	if err != nil {
		return nil, err
	}
	if codes := extensionCodes(data, ExtStorageTemperature); len(codes) > 0 {
		if err := s.SetStorageTemperature(StorageTemperature(codes[0])); err != nil {
			return nil, err
		}
	}
	s.collectedDatetime = collected
	s.bodySite, _ = fhir.GetString(data, "collection", "bodySite", "coding", 0, "code")
	s.bodySiteSystem, _ = fhir.GetString(data, "collection", "bodySite", "coding", 0, "system")
	s.useRestrictions, _ = fhir.GetString(data, "note", 0, "text")
	if ext := extensions(data, ExtSampleCollectionID); len(ext) > 0 {
		s.sampleCollectionID, _ = fhir.GetString(ext[0], "valueIdentifier", "value")
	}
	s.fhirID = fhirID
	s.subjectFHIRID = subject
	return s, nil
}
