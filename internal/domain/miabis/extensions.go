package miabis

const (
	miabisBase        = "https://fhir.bbmri-eric.eu/fhir"
	structureDefBase  = miabisBase + "/StructureDefinition/"
	codeSystemBase    = miabisBase + "/miabis/CodeSystem/"
	loincSystem       = "http://loinc.org"
	diagnosisLOINC    = "52797-8"
	ucumSystem        = "http://unitsofmeasure.org"
	characteristicsCS = "miabis-characteristicCS"
)

func structureDefinition(name string) string { return structureDefBase + name }

func codeSystem(name string) string { return codeSystemBase + name }

// Profile URLs carried in meta.profile of every resource the mapper emits.
var (
	ProfileSampleDonor            = structureDefinition("miabis-sample-donor")
	ProfileSample                 = structureDefinition("miabis-sample")
	ProfileObservation            = structureDefinition("miabis-observation")
	ProfileDiagnosisReport        = structureDefinition("miabis-diagnosis-report")
	ProfileCondition              = structureDefinition("miabis-condition")
	ProfileBiobank                = structureDefinition("miabis-biobank")
	ProfileCollectionOrganization = structureDefinition("miabis-collection-organization")
	ProfileCollection             = structureDefinition("miabis-collection")
	ProfileNetworkOrganization    = structureDefinition("miabis-network-organization")
	ProfileNetwork                = structureDefinition("miabis-network")
)

// CharacteristicSystem is the code system of Group.characteristic.code.
var CharacteristicSystem = codeSystem(characteristicsCS)

// Characteristic codes of a collection Group.
const (
	CharacteristicAge                = "Age"
	CharacteristicSex                = "Sex"
	CharacteristicStorageTemperature = "StorageTemperature"
	CharacteristicMaterialType       = "MaterialType"
	CharacteristicDiagnosis          = "Diagnosis"
)

// ExtensionField names one extension slot of a MIABIS profile.
type ExtensionField int

const (
	ExtDatasetType ExtensionField = iota
	ExtStorageTemperature
	ExtSampleCollectionID
	ExtDescription
	ExtJuristicPerson
	ExtInfrastructuralCapabilities
	ExtOrganisationalCapabilities
	ExtBioprocessingCapabilities
	ExtQualityStandards
	ExtCollectionDesign
	ExtSampleSource
	ExtSampleCollectionSetting
	ExtUseAndAccessConditions
	ExtPublications
	ExtNumberOfSubjects
	ExtInclusionCriteria
	ExtCollectionMember
	ExtNetworkMemberCollection
	ExtNetworkMemberBiobank
	ExtCommonCollaborationTopics
)

// extensionURLs is read by both serialization and deserialization.
var extensionURLs = map[ExtensionField]string{
	ExtDatasetType:                 structureDefinition("miabis-sample-donor-dataset-type-extension"),
	ExtStorageTemperature:          structureDefinition("miabis-sample-storage-temperature-extension"),
	ExtSampleCollectionID:          structureDefinition("miabis-sample-collection-extension"),
	ExtDescription:                 structureDefinition("miabis-organization-description-extension"),
	ExtJuristicPerson:              structureDefinition("miabis-juristic-person-extension"),
	ExtInfrastructuralCapabilities: structureDefinition("miabis-infrastructural-capabilities-extension"),
	ExtOrganisationalCapabilities:  structureDefinition("miabis-organisational-capabilities-extension"),
	ExtBioprocessingCapabilities:   structureDefinition("miabis-bioprocessing-and-analytical-capabilities-extension"),
	ExtQualityStandards:            structureDefinition("miabis-quality-management-standard-extension"),
	ExtCollectionDesign:            structureDefinition("miabis-collection-design-extension"),
	ExtSampleSource:                structureDefinition("miabis-sample-source-extension"),
	ExtSampleCollectionSetting:     structureDefinition("miabis-sample-collection-setting-extension"),
	ExtUseAndAccessConditions:      structureDefinition("miabis-use-and-access-conditions-extension"),
	ExtPublications:                structureDefinition("miabis-publications-extension"),
	ExtNumberOfSubjects:            structureDefinition("miabis-number-of-subjects-extension"),
	ExtInclusionCriteria:           structureDefinition("miabis-inclusion-criteria-extension"),
	ExtCollectionMember:            "http://hl7.org/fhir/5.0/StructureDefinition/extension-Group.member.entity",
	ExtNetworkMemberCollection:     structureDefinition("miabis-network-members-collections-extension"),
	ExtNetworkMemberBiobank:        structureDefinition("miabis-network-members-biobanks-extension"),
	ExtCommonCollaborationTopics:   structureDefinition("miabis-common-collaboration-topics-extension"),
}

// URL returns the canonical extension URL of the field.
func (f ExtensionField) URL() string { return extensionURLs[f] }
