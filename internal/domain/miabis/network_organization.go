package miabis

import (
	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityNetworkOrganization = "NetworkOrganization"

// NetworkOrganization is the organization record behind a network.
type NetworkOrganization struct {
	organizationBase
	managingBiobankIdentifier string
	juristicPerson            string
	collaborationTopics       []string

	managingBiobankFHIRID string
}

func NewNetworkOrganization(identifier, name, managingBiobankIdentifier, country, juristicPerson string, contact Contact) (*NetworkOrganization, error) {
	o := &NetworkOrganization{}
	if err := o.init(entityNetworkOrganization, identifier, name, country, contact); err != nil {
		return nil, err
	}
	if err := required(entityNetworkOrganization, "managing_biobank_id", managingBiobankIdentifier); err != nil {
		return nil, err
	}
	if err := o.SetJuristicPerson(juristicPerson); err != nil {
		return nil, err
	}
	o.managingBiobankIdentifier = managingBiobankIdentifier
	return o, nil
}

func (o *NetworkOrganization) ManagingBiobankIdentifier() string { return o.managingBiobankIdentifier }
func (o *NetworkOrganization) ManagingBiobankFHIRID() string     { return o.managingBiobankFHIRID }
func (o *NetworkOrganization) JuristicPerson() string            { return o.juristicPerson }

func (o *NetworkOrganization) CommonCollaborationTopics() []string {
	return copyStrings(o.collaborationTopics)
}

func (o *NetworkOrganization) SetAlias(alias string) { o.alias = alias }

func (o *NetworkOrganization) SetJuristicPerson(juristicPerson string) error {
	if err := required(entityNetworkOrganization, "juristic_person", juristicPerson); err != nil {
		return err
	}
	o.juristicPerson = juristicPerson
	return nil
}

func (o *NetworkOrganization) SetCommonCollaborationTopics(codes []string) error {
	if err := CollaborationTopics.checkAll(entityNetworkOrganization, "common_collaboration_topics", codes); err != nil {
		return err
	}
	o.collaborationTopics = copyStrings(codes)
	return nil
}

// ToFHIR serializes the organization. An empty managingBiobankFHIRID falls
// back to the cached one.
func (o *NetworkOrganization) ToFHIR(managingBiobankFHIRID string) (map[string]interface{}, error) {
	if managingBiobankFHIRID == "" {
		managingBiobankFHIRID = o.managingBiobankFHIRID
	}
	if managingBiobankFHIRID == "" {
		return nil, missingRef(entityNetworkOrganization, "Organization "+o.managingBiobankIdentifier)
	}
	result := o.toFHIR(ProfileNetworkOrganization)
	result["partOf"] = reference("Organization", managingBiobankFHIRID)

	var ext []fhir.Extension
	ext = append(ext, stringExtensions(ExtDescription, o.description)...)
	ext = append(ext, stringExtensions(ExtJuristicPerson, o.juristicPerson)...)
	ext = append(ext, codedExtensions(ExtCommonCollaborationTopics, CollaborationTopics, o.collaborationTopics)...)
	result["extension"] = ext
	return fhir.ToGeneric(result)
}

// NetworkOrganizationFromFHIR rebuilds the organization from a stored resource.
func NetworkOrganizationFromFHIR(data map[string]interface{}, managingBiobankIdentifier string) (*NetworkOrganization, error) {
	o := &NetworkOrganization{}
	if err := o.fromFHIR(entityNetworkOrganization, data); err != nil {
		return nil, err
	}
	partOf, err := requiredReference(entityNetworkOrganization, "partOf", data, "Organization", "partOf")
	if err != nil {
		return nil, err
	}
	juristic := extensionString(data, ExtJuristicPerson)
	if juristic == "" {
		return nil, malformed(entityNetworkOrganization, "juristic person extension")
	}
	if err := required(entityNetworkOrganization, "managing_biobank_id", managingBiobankIdentifier); err != nil {
		return nil, err
	}
	if err := o.SetCommonCollaborationTopics(extensionCodes(data, ExtCommonCollaborationTopics)); err != nil {
		return nil, err
	}
	o.juristicPerson = juristic
	o.managingBiobankIdentifier = managingBiobankIdentifier
	o.managingBiobankFHIRID = partOf
	return o, nil
}
