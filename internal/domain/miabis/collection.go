package miabis

import (
	"math"

	"github.com/miabis/miabis/internal/domain/terminology"
	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityCollection = "Collection"

// Collection groups samples and caches aggregates derived from its members:
// donor genders and ages, storage temperatures, material types and diagnoses.
type Collection struct {
	identifier                      string
	name                            string
	managingCollectionOrgIdentifier string
	ageRangeLow                     *int
	ageRangeHigh                    *int
	ageUnit                         string
	genders                         []Gender
	storageTemperatures             []StorageTemperature
	materialTypes                   []MaterialType
	diagnoses                       []string
	numberOfSubjects                *int
	inclusionCriteria               []string
	sampleFHIRIDs                   []string

	fhirID                      string
	managingCollectionOrgFHIRID string
}

func NewCollection(identifier, name, managingCollectionOrgIdentifier string) (*Collection, error) {
	c := &Collection{ageUnit: "a"}
	if err := required(entityCollection, "identifier", identifier); err != nil {
		return nil, err
	}
	if err := required(entityCollection, "name", name); err != nil {
		return nil, err
	}
	if err := required(entityCollection, "managing_collection_org_id", managingCollectionOrgIdentifier); err != nil {
		return nil, err
	}
	c.identifier = identifier
	c.name = name
	c.managingCollectionOrgIdentifier = managingCollectionOrgIdentifier
	return c, nil
}

func (c *Collection) Identifier() string                      { return c.identifier }
func (c *Collection) Name() string                            { return c.name }
func (c *Collection) ManagingCollectionOrgIdentifier() string { return c.managingCollectionOrgIdentifier }
func (c *Collection) AgeRangeLow() *int                       { return c.ageRangeLow }
func (c *Collection) AgeRangeHigh() *int                      { return c.ageRangeHigh }
func (c *Collection) AgeUnit() string                         { return c.ageUnit }
func (c *Collection) NumberOfSubjects() *int                  { return c.numberOfSubjects }
func (c *Collection) Diagnoses() []string                     { return copyStrings(c.diagnoses) }
func (c *Collection) InclusionCriteria() []string             { return copyStrings(c.inclusionCriteria) }
func (c *Collection) SampleFHIRIDs() []string                 { return copyStrings(c.sampleFHIRIDs) }
func (c *Collection) FHIRID() string                          { return c.fhirID }
func (c *Collection) ManagingCollectionOrgFHIRID() string     { return c.managingCollectionOrgFHIRID }

func (c *Collection) Genders() []Gender {
	return append([]Gender(nil), c.genders...)
}

func (c *Collection) StorageTemperatures() []StorageTemperature {
	return append([]StorageTemperature(nil), c.storageTemperatures...)
}

func (c *Collection) MaterialTypes() []MaterialType {
	return append([]MaterialType(nil), c.materialTypes...)
}

// SetAgeRange sets the donor age range. Either bound may be nil; the bounds
// are not checked against each other.
func (c *Collection) SetAgeRange(low, high *int) {
	c.ageRangeLow = low
	c.ageRangeHigh = high
}

func (c *Collection) SetAgeUnit(unit string) error {
	if err := AgeUnits.check(entityCollection, "age_unit", unit); err != nil {
		return err
	}
	c.ageUnit = unit
	return nil
}

func (c *Collection) SetNumberOfSubjects(n *int) error {
	if n != nil && *n < 0 {
		return &ValidationError{Entity: entityCollection, Field: "number_of_subjects", Value: *n, Err: ErrValueNotAllowed}
	}
	c.numberOfSubjects = n
	return nil
}

func (c *Collection) SetGenders(genders []Gender) error {
	for _, g := range genders {
		if err := Genders.check(entityCollection, "genders", string(g)); err != nil {
			return err
		}
	}
	c.genders = append([]Gender(nil), genders...)
	return nil
}

func (c *Collection) SetStorageTemperatures(temps []StorageTemperature) error {
	for _, t := range temps {
		if err := StorageTemperatures.check(entityCollection, "storage_temperatures", string(t)); err != nil {
			return err
		}
	}
	c.storageTemperatures = append([]StorageTemperature(nil), temps...)
	return nil
}

func (c *Collection) SetMaterialTypes(types []MaterialType) error {
	for _, m := range types {
		if err := MaterialTypes.check(entityCollection, "material_types", string(m)); err != nil {
			return err
		}
	}
	c.materialTypes = append([]MaterialType(nil), types...)
	return nil
}

func (c *Collection) SetDiagnoses(codes []string) error {
	for _, code := range codes {
		if !terminology.IsValidICD10(code) {
			return &ValidationError{Entity: entityCollection, Field: "diagnoses", Value: code, Err: ErrValueNotAllowed}
		}
	}
	c.diagnoses = copyStrings(codes)
	return nil
}

func (c *Collection) SetInclusionCriteria(codes []string) error {
	if err := InclusionCriteria.checkAll(entityCollection, "inclusion_criteria", codes); err != nil {
		return err
	}
	c.inclusionCriteria = copyStrings(codes)
	return nil
}

// SetSampleFHIRIDs replaces the membership list.
func (c *Collection) SetSampleFHIRIDs(ids []string) { c.sampleFHIRIDs = copyStrings(ids) }

// AddSampleFHIRIDs appends members not already present and returns how many
// were added.
func (c *Collection) AddSampleFHIRIDs(ids ...string) int {
	added := 0
	for _, id := range ids {
		if id != "" && !containsString(c.sampleFHIRIDs, id) {
			c.sampleFHIRIDs = append(c.sampleFHIRIDs, id)
			added++
		}
	}
	return added
}

// RemoveSampleFHIRID drops a member and reports whether it was present.
func (c *Collection) RemoveSampleFHIRID(id string) bool {
	var i int
	c.sampleFHIRIDs, i = removeString(c.sampleFHIRIDs, id)
	return i >= 0
}

func characteristic(code string, value fhir.CodeableConcept) fhir.GroupCharacteristic {
	return fhir.GroupCharacteristic{
		Code:                 fhir.Concept(CharacteristicSystem, code),
		ValueCodeableConcept: &value,
	}
}

func (c *Collection) ageQuantity(v *int) *fhir.Quantity {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &fhir.Quantity{Value: &f, Unit: c.ageUnit, System: ucumSystem, Code: c.ageUnit}
}

// ToFHIR serializes the collection to a Group. Characteristics are emitted
// as Age, then each Sex, StorageTemperature, MaterialType and Diagnosis;
// extensions as number of subjects, each inclusion criterion, then one
// member entry per sample in membership order.
func (c *Collection) ToFHIR(managingCollectionOrgFHIRID string) (map[string]interface{}, error) {
	if managingCollectionOrgFHIRID == "" {
		managingCollectionOrgFHIRID = c.managingCollectionOrgFHIRID
	}
	if managingCollectionOrgFHIRID == "" {
		return nil, missingRef(entityCollection, "Organization "+c.managingCollectionOrgIdentifier)
	}
	result := newResource("Group", ProfileCollection, c.fhirID, c.identifier)
	result["type"] = "person"
	result["actual"] = true
	result["name"] = c.name
	result["managingEntity"] = reference("Organization", managingCollectionOrgFHIRID)

	var chars []fhir.GroupCharacteristic
	if c.ageRangeLow != nil || c.ageRangeHigh != nil {
		chars = append(chars, fhir.GroupCharacteristic{
			Code:       fhir.Concept(CharacteristicSystem, CharacteristicAge),
			ValueRange: &fhir.Range{Low: c.ageQuantity(c.ageRangeLow), High: c.ageQuantity(c.ageRangeHigh)},
		})
	}
	for _, g := range c.genders {
		chars = append(chars, characteristic(CharacteristicSex, fhir.Concept(Genders.System, string(g))))
	}
	for _, t := range c.storageTemperatures {
		chars = append(chars, characteristic(CharacteristicStorageTemperature, fhir.Concept(StorageTemperatures.System, string(t))))
	}
	for _, m := range c.materialTypes {
		chars = append(chars, characteristic(CharacteristicMaterialType, fhir.Concept(MaterialTypes.System, string(m))))
	}
	for _, d := range c.diagnoses {
		chars = append(chars, characteristic(CharacteristicDiagnosis, fhir.Concept(terminology.SystemICD10, terminology.NormalizeICD10(d))))
	}
	if len(chars) > 0 {
		result["characteristic"] = chars
	}

	var ext []fhir.Extension
	if c.numberOfSubjects != nil {
		ext = append(ext, fhir.Extension{URL: ExtNumberOfSubjects.URL(), ValueInteger: intPtr(*c.numberOfSubjects)})
	}
	ext = append(ext, codedExtensions(ExtInclusionCriteria, InclusionCriteria, c.inclusionCriteria)...)
	ext = append(ext, referenceExtensions(ExtCollectionMember, "Specimen", c.sampleFHIRIDs)...)
	if len(ext) > 0 {
		result["extension"] = ext
	}
	return fhir.ToGeneric(result)
}

// CollectionFromFHIR rebuilds a collection from a stored Group resource.
func CollectionFromFHIR(data map[string]interface{}, managingCollectionOrgIdentifier string) (*Collection, error) {
	fhirID, err := requiredString(entityCollection, "id", data, "id")
	if err != nil {
		return nil, err
	}
	identifier, err := requiredString(entityCollection, "identifier", data, "identifier", 0, "value")
	if err != nil {
		return nil, err
	}
	name, err := requiredString(entityCollection, "name", data, "name")
	if err != nil {
		return nil, err
	}
	org, err := requiredReference(entityCollection, "managingEntity", data, "Organization", "managingEntity")
	if err != nil {
		return nil, err
	}
	c, err := NewCollection(identifier, name, managingCollectionOrgIdentifier)
	if err != nil {
		return nil, err
	}

	var genders []Gender
	var temps []StorageTemperature
	var materials []MaterialType
	var diagnoses []string
	for _, ch := range fhir.GetSlice(data, "characteristic") {
		code, _ := fhir.GetString(ch, "code", "coding", 0, "code")
		value, _ := fhir.GetString(ch, "valueCodeableConcept", "coding", 0, "code")
		switch code {
		case CharacteristicAge:
			c.ageRangeLow = quantityInt(ch, "low")
			c.ageRangeHigh = quantityInt(ch, "high")
			for _, bound := range []string{"low", "high"} {
				if unit, ok := fhir.GetString(ch, "valueRange", bound, "code"); ok {
					c.ageUnit = unit
				}
			}
		case CharacteristicSex:
			genders = append(genders, Gender(value))
		case CharacteristicStorageTemperature:
			temps = append(temps, StorageTemperature(value))
		case CharacteristicMaterialType:
			materials = append(materials, MaterialType(value))
		case CharacteristicDiagnosis:
			diagnoses = append(diagnoses, value)
		}
	}
	if err := c.SetAgeUnit(c.ageUnit); err != nil {
		return nil, err
	}
	if err := c.SetGenders(genders); err != nil {
		return nil, err
	}
	if err := c.SetStorageTemperatures(temps); err != nil {
		return nil, err
	}
	if err := c.SetMaterialTypes(materials); err != nil {
		return nil, err
	}
	if err := c.SetDiagnoses(diagnoses); err != nil {
		return nil, err
	}
	if err := c.SetInclusionCriteria(extensionCodes(data, ExtInclusionCriteria)); err != nil {
		return nil, err
	}
	if ext := extensions(data, ExtNumberOfSubjects); len(ext) > 0 {
		if n, ok := fhir.GetNumber(ext[0], "valueInteger"); ok {
			c.numberOfSubjects = intPtr(int(n))
		}
	}
	c.sampleFHIRIDs = extensionReferenceIDs(data, ExtCollectionMember, "Specimen")
	c.fhirID = fhirID
	c.managingCollectionOrgFHIRID = org
	return c, nil
}

func quantityInt(characteristic interface{}, bound string) *int {
	f, ok := fhir.GetNumber(characteristic, "valueRange", bound, "value")
	if !ok {
		return nil
	}
	return intPtr(int(math.Round(f)))
}
