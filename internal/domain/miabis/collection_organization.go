package miabis

import (
	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityCollectionOrganization = "CollectionOrganization"

// CollectionOrganization is the formal organization record behind a
// collection, managed by a biobank.
type CollectionOrganization struct {
	organizationBase
	managingBiobankIdentifier string
	datasetTypes              []string
	sampleSources             []string
	sampleCollectionSettings  []string
	collectionDesigns         []string
	useAndAccessConditions    []string
	publications              []string

	managingBiobankFHIRID string
}

func NewCollectionOrganization(identifier, name, managingBiobankIdentifier, alias, country string, contact Contact) (*CollectionOrganization, error) {
	o := &CollectionOrganization{}
	if err := o.init(entityCollectionOrganization, identifier, name, country, contact); err != nil {
		return nil, err
	}
	if err := required(entityCollectionOrganization, "managing_biobank_id", managingBiobankIdentifier); err != nil {
		return nil, err
	}
	if err := required(entityCollectionOrganization, "alias", alias); err != nil {
		return nil, err
	}
	o.managingBiobankIdentifier = managingBiobankIdentifier
	o.alias = alias
	return o, nil
}

func (o *CollectionOrganization) ManagingBiobankIdentifier() string { return o.managingBiobankIdentifier }
func (o *CollectionOrganization) ManagingBiobankFHIRID() string     { return o.managingBiobankFHIRID }
func (o *CollectionOrganization) DatasetTypes() []string            { return copyStrings(o.datasetTypes) }
func (o *CollectionOrganization) SampleSources() []string           { return copyStrings(o.sampleSources) }
func (o *CollectionOrganization) SampleCollectionSettings() []string {
	return copyStrings(o.sampleCollectionSettings)
}
func (o *CollectionOrganization) CollectionDesigns() []string { return copyStrings(o.collectionDesigns) }
func (o *CollectionOrganization) UseAndAccessConditions() []string {
	return copyStrings(o.useAndAccessConditions)
}
func (o *CollectionOrganization) Publications() []string     { return copyStrings(o.publications) }
func (o *CollectionOrganization) SetPublications(p []string) { o.publications = copyStrings(p) }

func (o *CollectionOrganization) SetDatasetTypes(codes []string) error {
	if err := DatasetTypes.checkAll(entityCollectionOrganization, "dataset_type", codes); err != nil {
		return err
	}
	o.datasetTypes = copyStrings(codes)
	return nil
}

func (o *CollectionOrganization) SetSampleSources(codes []string) error {
	if err := SampleSources.checkAll(entityCollectionOrganization, "sample_source", codes); err != nil {
		return err
	}
	o.sampleSources = copyStrings(codes)
	return nil
}

func (o *CollectionOrganization) SetSampleCollectionSettings(codes []string) error {
	if err := SampleCollectionSettings.checkAll(entityCollectionOrganization, "sample_collection_setting", codes); err != nil {
		return err
	}
	o.sampleCollectionSettings = copyStrings(codes)
	return nil
}

func (o *CollectionOrganization) SetCollectionDesigns(codes []string) error {
	if err := CollectionDesigns.checkAll(entityCollectionOrganization, "collection_design", codes); err != nil {
		return err
	}
	o.collectionDesigns = copyStrings(codes)
	return nil
}

func (o *CollectionOrganization) SetUseAndAccessConditions(codes []string) error {
	if err := UseAndAccessConditions.checkAll(entityCollectionOrganization, "use_and_access_conditions", codes); err != nil {
		return err
	}
	o.useAndAccessConditions = copyStrings(codes)
	return nil
}

// ToFHIR serializes the organization. An empty managingBiobankFHIRID falls
// back to the cached one.
func (o *CollectionOrganization) ToFHIR(managingBiobankFHIRID string) (map[string]interface{}, error) {
	if managingBiobankFHIRID == "" {
		managingBiobankFHIRID = o.managingBiobankFHIRID
	}
	if managingBiobankFHIRID == "" {
		return nil, missingRef(entityCollectionOrganization, "Organization "+o.managingBiobankIdentifier)
	}
	result := o.toFHIR(ProfileCollectionOrganization)
	result["partOf"] = reference("Organization", managingBiobankFHIRID)

	var ext []fhir.Extension
	ext = append(ext, stringExtensions(ExtDescription, o.description)...)
	ext = append(ext, codedExtensions(ExtDatasetType, DatasetTypes, o.datasetTypes)...)
	ext = append(ext, codedExtensions(ExtSampleSource, SampleSources, o.sampleSources)...)
	ext = append(ext, codedExtensions(ExtSampleCollectionSetting, SampleCollectionSettings, o.sampleCollectionSettings)...)
	ext = append(ext, codedExtensions(ExtCollectionDesign, CollectionDesigns, o.collectionDesigns)...)
	ext = append(ext, codedExtensions(ExtUseAndAccessConditions, UseAndAccessConditions, o.useAndAccessConditions)...)
	ext = append(ext, stringExtensions(ExtPublications, o.publications...)...)
	if len(ext) > 0 {
		result["extension"] = ext
	}
	return fhir.ToGeneric(result)
}

// CollectionOrganizationFromFHIR rebuilds the organization from a stored
// resource. The managing biobank is only referenced by FHIR id on the wire.
func CollectionOrganizationFromFHIR(data map[string]interface{}, managingBiobankIdentifier string) (*CollectionOrganization, error) {
	o := &CollectionOrganization{}
	if err := o.fromFHIR(entityCollectionOrganization, data); err != nil {
		return nil, err
	}
	if o.alias == "" {
		return nil, malformed(entityCollectionOrganization, "alias")
	}
	partOf, err := requiredReference(entityCollectionOrganization, "partOf", data, "Organization", "partOf")
	if err != nil {
		return nil, err
	}
	if err := required(entityCollectionOrganization, "managing_biobank_id", managingBiobankIdentifier); err != nil {
		return nil, err
	}
	o.managingBiobankIdentifier = managingBiobankIdentifier
	o.managingBiobankFHIRID = partOf

	setters := []struct {
		field ExtensionField
		set   func([]string) error
	}{
		{ExtDatasetType, o.SetDatasetTypes},
		{ExtSampleSource, o.SetSampleSources},
		{ExtSampleCollectionSetting, o.SetSampleCollectionSettings},
		{ExtCollectionDesign, o.SetCollectionDesigns},
		{ExtUseAndAccessConditions, o.SetUseAndAccessConditions},
	}
	for _, s := range setters {
		if err := s.set(extensionCodes(data, s.field)); err != nil {
			return nil, err
		}
	}
	o.publications = extensionStrings(data, ExtPublications)
	return o, nil
}
