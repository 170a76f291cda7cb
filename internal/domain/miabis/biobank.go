package miabis

import (
	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityBiobank = "Biobank"

// Biobank is the organizational root of collections and networks.
type Biobank struct {
	organizationBase
	juristicPerson              string
	infrastructuralCapabilities []string
	organisationalCapabilities  []string
	bioprocessingCapabilities   []string
	qualityStandards            []string
}

func NewBiobank(identifier, name, alias, country string, contact Contact) (*Biobank, error) {
	b := &Biobank{}
	if err := b.init(entityBiobank, identifier, name, country, contact); err != nil {
		return nil, err
	}
	if err := b.SetAlias(alias); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Biobank) JuristicPerson() string                   { return b.juristicPerson }
func (b *Biobank) InfrastructuralCapabilities() []string    { return copyStrings(b.infrastructuralCapabilities) }
func (b *Biobank) OrganisationalCapabilities() []string     { return copyStrings(b.organisationalCapabilities) }
func (b *Biobank) BioprocessingCapabilities() []string      { return copyStrings(b.bioprocessingCapabilities) }
func (b *Biobank) QualityManagementStandards() []string     { return copyStrings(b.qualityStandards) }
func (b *Biobank) SetJuristicPerson(juristicPerson string)  { b.juristicPerson = juristicPerson }
func (b *Biobank) SetQualityManagementStandards(s []string) { b.qualityStandards = copyStrings(s) }

func (b *Biobank) SetAlias(alias string) error {
	if err := required(entityBiobank, "alias", alias); err != nil {
		return err
	}
	b.alias = alias
	return nil
}

func (b *Biobank) SetInfrastructuralCapabilities(codes []string) error {
	if err := InfrastructuralCapabilities.checkAll(entityBiobank, "infrastructural_capabilities", codes); err != nil {
		return err
	}
	b.infrastructuralCapabilities = copyStrings(codes)
	return nil
}

func (b *Biobank) SetOrganisationalCapabilities(codes []string) error {
	if err := OrganisationalCapabilities.checkAll(entityBiobank, "organisational_capabilities", codes); err != nil {
		return err
	}
	b.organisationalCapabilities = copyStrings(codes)
	return nil
}

func (b *Biobank) SetBioprocessingCapabilities(codes []string) error {
	if err := BioprocessingCapabilities.checkAll(entityBiobank, "bioprocessing_and_analysis_capabilities", codes); err != nil {
		return err
	}
	b.bioprocessingCapabilities = copyStrings(codes)
	return nil
}

// ToFHIR serializes the biobank to an Organization resource.
func (b *Biobank) ToFHIR() (map[string]interface{}, error) {
	result := b.toFHIR(ProfileBiobank)
	var ext []fhir.Extension
	ext = append(ext, stringExtensions(ExtDescription, b.description)...)
	ext = append(ext, stringExtensions(ExtJuristicPerson, b.juristicPerson)...)
	ext = append(ext, codedExtensions(ExtInfrastructuralCapabilities, InfrastructuralCapabilities, b.infrastructuralCapabilities)...)
	ext = append(ext, codedExtensions(ExtOrganisationalCapabilities, OrganisationalCapabilities, b.organisationalCapabilities)...)
	ext = append(ext, codedExtensions(ExtBioprocessingCapabilities, BioprocessingCapabilities, b.bioprocessingCapabilities)...)
	ext = append(ext, stringExtensions(ExtQualityStandards, b.qualityStandards...)...)
	if len(ext) > 0 {
		result["extension"] = ext
	}
	return fhir.ToGeneric(result)
}

// BiobankFromFHIR rebuilds a biobank from a stored Organization resource.
func BiobankFromFHIR(data map[string]interface{}) (*Biobank, error) {
	b := &Biobank{}
	if err := b.fromFHIR(entityBiobank, data); err != nil {
		return nil, err
	}
	if b.alias == "" {
		return nil, malformed(entityBiobank, "alias")
	}
	if err := b.SetInfrastructuralCapabilities(extensionCodes(data, ExtInfrastructuralCapabilities)); err != nil {
		return nil, err
	}
	if err := b.SetOrganisationalCapabilities(extensionCodes(data, ExtOrganisationalCapabilities)); err != nil {
		return nil, err
	}
	if err := b.SetBioprocessingCapabilities(extensionCodes(data, ExtBioprocessingCapabilities)); err != nil {
		return nil, err
	}
	b.juristicPerson = extensionString(data, ExtJuristicPerson)
	b.qualityStandards = extensionStrings(data, ExtQualityStandards)
	return b, nil
}
