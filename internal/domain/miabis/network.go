package miabis

import (
	"github.com/miabis/miabis/internal/platform/fhir"
)

const entityNetwork = "Network"

// Network groups collections and biobanks under a network organization.
type Network struct {
	identifier                   string
	name                         string
	managingNetworkOrgIdentifier string
	description                  string
	memberCollectionIdentifiers  []string
	memberBiobankIdentifiers     []string

	fhirID                   string
	managingNetworkOrgFHIRID string
	memberCollectionFHIRIDs  []string
	memberBiobankFHIRIDs     []string
}

func NewNetwork(identifier, name, managingNetworkOrgIdentifier string, memberCollections, memberBiobanks []string) (*Network, error) {
	if err := required(entityNetwork, "identifier", identifier); err != nil {
		return nil, err
	}
	if err := required(entityNetwork, "name", name); err != nil {
		return nil, err
	}
	if err := required(entityNetwork, "managing_network_org_id", managingNetworkOrgIdentifier); err != nil {
		return nil, err
	}
	return &Network{
		identifier:                   identifier,
		name:                         name,
		managingNetworkOrgIdentifier: managingNetworkOrgIdentifier,
		memberCollectionIdentifiers:  copyStrings(memberCollections),
		memberBiobankIdentifiers:     copyStrings(memberBiobanks),
	}, nil
}

func (n *Network) Identifier() string                   { return n.identifier }
func (n *Network) Name() string                         { return n.name }
func (n *Network) ManagingNetworkOrgIdentifier() string { return n.managingNetworkOrgIdentifier }
func (n *Network) Description() string                  { return n.description }
func (n *Network) FHIRID() string                       { return n.fhirID }
func (n *Network) ManagingNetworkOrgFHIRID() string     { return n.managingNetworkOrgFHIRID }
func (n *Network) SetDescription(description string)    { n.description = description }

func (n *Network) MemberCollectionIdentifiers() []string {
	return copyStrings(n.memberCollectionIdentifiers)
}

func (n *Network) MemberBiobankIdentifiers() []string {
	return copyStrings(n.memberBiobankIdentifiers)
}

func (n *Network) MemberCollectionFHIRIDs() []string { return copyStrings(n.memberCollectionFHIRIDs) }
func (n *Network) MemberBiobankFHIRIDs() []string    { return copyStrings(n.memberBiobankFHIRIDs) }

// AddMemberCollection adds a collection by identifier and FHIR id unless the
// FHIR id is already a member.
func (n *Network) AddMemberCollection(identifier, fhirID string) bool {
	if containsString(n.memberCollectionFHIRIDs, fhirID) {
		return false
	}
	n.memberCollectionIdentifiers = append(n.memberCollectionIdentifiers, identifier)
	n.memberCollectionFHIRIDs = append(n.memberCollectionFHIRIDs, fhirID)
	return true
}

// AddMemberBiobank adds a biobank by identifier and FHIR id unless the FHIR
// id is already a member.
func (n *Network) AddMemberBiobank(identifier, fhirID string) bool {
	if containsString(n.memberBiobankFHIRIDs, fhirID) {
		return false
	}
	n.memberBiobankIdentifiers = append(n.memberBiobankIdentifiers, identifier)
	n.memberBiobankFHIRIDs = append(n.memberBiobankFHIRIDs, fhirID)
	return true
}

func (n *Network) RemoveMemberCollection(fhirID string) bool {
	return removeMember(&n.memberCollectionFHIRIDs, &n.memberCollectionIdentifiers, fhirID)
}

func (n *Network) RemoveMemberBiobank(fhirID string) bool {
	return removeMember(&n.memberBiobankFHIRIDs, &n.memberBiobankIdentifiers, fhirID)
}

func removeMember(fhirIDs, identifiers *[]string, fhirID string) bool {
	var i int
	*fhirIDs, i = removeString(*fhirIDs, fhirID)
	if i < 0 {
		return false
	}
	if i < len(*identifiers) {
		*identifiers = append((*identifiers)[:i:i], (*identifiers)[i+1:]...)
	}
	return true
}

// ToFHIR serializes the network to a Group. Empty or nil arguments fall back
// to the cached FHIR ids; every member identifier needs a FHIR id.
func (n *Network) ToFHIR(managingNetworkOrgFHIRID string, collectionFHIRIDs, biobankFHIRIDs []string) (map[string]interface{}, error) {
	if managingNetworkOrgFHIRID == "" {
		managingNetworkOrgFHIRID = n.managingNetworkOrgFHIRID
	}
	if collectionFHIRIDs == nil {
		collectionFHIRIDs = n.memberCollectionFHIRIDs
	}
	if biobankFHIRIDs == nil {
		biobankFHIRIDs = n.memberBiobankFHIRIDs
	}
	if managingNetworkOrgFHIRID == "" {
		return nil, missingRef(entityNetwork, "Organization "+n.managingNetworkOrgIdentifier)
	}
	if len(collectionFHIRIDs) < len(n.memberCollectionIdentifiers) {
		return nil, missingRef(entityNetwork, "Group "+n.memberCollectionIdentifiers[len(collectionFHIRIDs)])
	}
	if len(biobankFHIRIDs) < len(n.memberBiobankIdentifiers) {
		return nil, missingRef(entityNetwork, "Organization "+n.memberBiobankIdentifiers[len(biobankFHIRIDs)])
	}

	result := newResource("Group", ProfileNetwork, n.fhirID, n.identifier)
	result["type"] = "person"
	result["actual"] = false
	result["name"] = n.name
	result["managingEntity"] = reference("Organization", managingNetworkOrgFHIRID)

	var ext []fhir.Extension
	ext = append(ext, referenceExtensions(ExtNetworkMemberCollection, "Group", collectionFHIRIDs)...)
	ext = append(ext, referenceExtensions(ExtNetworkMemberBiobank, "Organization", biobankFHIRIDs)...)
	ext = append(ext, stringExtensions(ExtDescription, n.description)...)
	if len(ext) > 0 {
		result["extension"] = ext
	}
	return fhir.ToGeneric(result)
}

// NetworkFromFHIR rebuilds a network from a stored Group. The member
// identifiers must follow the order of the member extensions.
func NetworkFromFHIR(data map[string]interface{}, managingNetworkOrgIdentifier string, collectionIdentifiers, biobankIdentifiers []string) (*Network, error) {
	fhirID, err := requiredString(entityNetwork, "id", data, "id")
	if err != nil {
		return nil, err
	}
	identifier, err := requiredString(entityNetwork, "identifier", data, "identifier", 0, "value")
	if err != nil {
		return nil, err
	}
	name, err := requiredString(entityNetwork, "name", data, "name")
	if err != nil {
		return nil, err
	}
	org, err := requiredReference(entityNetwork, "managingEntity", data, "Organization", "managingEntity")
	if err != nil {
		return nil, err
	}
	n, err := NewNetwork(identifier, name, managingNetworkOrgIdentifier, collectionIdentifiers, biobankIdentifiers)
	if err != nil {
		return nil, err
	}
	n.description = extensionString(data, ExtDescription)
	n.fhirID = fhirID
	n.managingNetworkOrgFHIRID = org
	n.memberCollectionFHIRIDs = extensionReferenceIDs(data, ExtNetworkMemberCollection, "Group")
	n.memberBiobankFHIRIDs = extensionReferenceIDs(data, ExtNetworkMemberBiobank, "Organization")
	return n, nil
}
