package miabis

// Vocabulary is a closed set of codes drawn from one code system.
type Vocabulary struct {
	Name   string
	System string
	codes  []string
	index  map[string]struct{}
}

func newVocabulary(name, system string, codes ...string) *Vocabulary {
	v := &Vocabulary{Name: name, System: system, codes: codes, index: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		v.index[c] = struct{}{}
	}
	return v
}

// Contains reports whether code belongs to the vocabulary.
func (v *Vocabulary) Contains(code string) bool {
	_, ok := v.index[code]
	return ok
}

// Codes returns the codes in declaration order.
func (v *Vocabulary) Codes() []string {
	out := make([]string, len(v.codes))
	copy(out, v.codes)
	return out
}

// check is the one validator every constructor and setter goes through for
// coded fields.
func (v *Vocabulary) check(entity, field, code string) error {
	if !v.Contains(code) {
		return &ValidationError{Entity: entity, Field: field, Value: code, Err: ErrValueNotAllowed}
	}
	return nil
}

func (v *Vocabulary) checkAll(entity, field string, codes []string) error {
	for _, c := range codes {
		if err := v.check(entity, field, c); err != nil {
			return err
		}
	}
	return nil
}

// Gender is the administrative gender of a sample donor.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) IsValid() bool { return Genders.Contains(string(g)) }

// StorageTemperature is the temperature range a sample is kept at.
type StorageTemperature string

const (
	StorageTemperatureRoom      StorageTemperature = "RT"
	StorageTemperature2to10     StorageTemperature = "2to10"
	StorageTemperatureMinus18   StorageTemperature = "-18to-35"
	StorageTemperatureMinus60   StorageTemperature = "-60to-85"
	StorageTemperatureLiquidN2  StorageTemperature = "LN"
	StorageTemperatureOtherTemp StorageTemperature = "Other"
)

func (t StorageTemperature) IsValid() bool { return StorageTemperatures.Contains(string(t)) }

// MaterialType is the kind of material a sample consists of.
type MaterialType string

func (m MaterialType) IsValid() bool { return MaterialTypes.Contains(string(m)) }

var (
	Genders = newVocabulary("gender", "http://hl7.org/fhir/administrative-gender",
		string(GenderMale), string(GenderFemale), string(GenderOther), string(GenderUnknown))

	StorageTemperatures = newVocabulary("storage temperature", codeSystem("miabis-storage-temperature-cs"),
		string(StorageTemperatureRoom), string(StorageTemperature2to10), string(StorageTemperatureMinus18),
		string(StorageTemperatureMinus60), string(StorageTemperatureLiquidN2), string(StorageTemperatureOtherTemp))

	MaterialTypes = newVocabulary("material type", codeSystem("miabis-detailed-sample-type-cs"),
		"Blood", "BuffyCoat", "CordBlood", "BoneMarrow", "CDNA", "DNA", "RNA", "Plasma", "PlasmaEDTA",
		"PlasmaCitrate", "PlasmaHeparin", "Serum", "PBMC", "Saliva", "Urine", "Faeces", "CSF",
		"TissueFrozen", "TissueFixed", "TissueParaffinEmbedded", "CellLine", "IsolatedPathogen",
		"Swab", "OtherMaterial")

	DatasetTypes = newVocabulary("dataset type", codeSystem("miabis-dataset-type-cs"),
		"Lifestyle", "Environmental", "Physiological", "Biochemical", "Clinical", "Psychological",
		"Genomic", "Proteomic", "Metabolomic", "BodyImage", "WholeSlideImage", "PhotoImage",
		"GenealogicalRecords", "Other")

	InfrastructuralCapabilities = newVocabulary("infrastructural capability", codeSystem("miabis-infrastructural-capabilities-cs"),
		"SampleStorage", "DataStorage", "Biosafety")

	OrganisationalCapabilities = newVocabulary("organisational capability", codeSystem("miabis-organisational-capabilities-cs"),
		"RecontactDonors", "ClinicalTrials", "ProspectiveCollections", "OmicsData", "LabAnalysis", "OtherCapability")

	BioprocessingCapabilities = newVocabulary("bioprocessing and analytical capability", codeSystem("miabis-bioprocessing-and-analytical-capabilities-cs"),
		"BioChemAnalyses", "Genomics", "NucleicAcidExtraction", "Proteomics", "Metabolomics", "Histology",
		"CellLinesProcessing", "Virology", "OtherAnalyses")

	SampleSources = newVocabulary("sample source", codeSystem("miabis-sample-source-cs"),
		"Human", "Animal", "Environment")

	SampleCollectionSettings = newVocabulary("sample collection setting", codeSystem("miabis-sample-collection-setting-cs"),
		"RoutineHealthCare", "ClinicalTrial", "ResearchStudy", "Public", "Museum", "Environment", "Unknown", "Other")

	CollectionDesigns = newVocabulary("collection design", codeSystem("miabis-collection-design-cs"),
		"CaseControl", "CrossSectional", "LongitudinalCohort", "TwinStudy", "QualityControl",
		"PopulationBasedCohort", "DiseaseSpecificCohort", "BirthCohort", "PartOfSampleCollection", "Other")

	UseAndAccessConditions = newVocabulary("use and access condition", codeSystem("miabis-use-and-access-conditions-cs"),
		"CommercialUse", "Collaboration", "SpecificResearchUse", "GeneticDataUse", "OutsideEUAccess",
		"Xenograft", "OtherUseAndAccessConditions")

	InclusionCriteria = newVocabulary("inclusion criterion", codeSystem("miabis-inclusion-criteria-cs"),
		"HealthStatus", "HospitalPatient", "UseOfMedication", "Gravidity", "AgeGroup", "FamilialStatus",
		"Sex", "CountryOfResidence", "EthnicOrigin", "PopulationRepresentative", "Lifestyle", "Other")

	CollaborationTopics = newVocabulary("common collaboration topic", codeSystem("miabis-network-common-collaboration-topics-cs"),
		"Charter", "SOP", "DataAccessPolicy", "SampleAccessPolicy", "MTA", "ImageAccessPolicy",
		"ImageMTA", "Representation", "URL", "Other")

	AgeUnits = newVocabulary("age unit", "http://unitsofmeasure.org",
		"a", "mo", "wk", "d")
)
