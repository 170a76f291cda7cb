package miabis

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/miabis/miabis/internal/domain/terminology"
	"github.com/miabis/miabis/internal/platform/fhir"
)

// Service keeps the MIABIS resource graph in a ResourceStore consistent. It
// resolves organizational identifiers to FHIR ids, orders cascading deletes
// so that no reference is left dangling, and recomputes collection
// aggregates whenever membership changes.
//
// A Service assumes it is the only writer: updates are read-modify-write
// without version checks.
type Service struct {
	store  ResourceStore
	codes  terminology.ICD10Repository
	logger zerolog.Logger
}

type ServiceOption func(*Service)

// WithLogger sets the logger used for cascade and recompute tracing.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithCodeTable sets the ICD-10 code table uploads are checked against. The
// default is the embedded WHO table.
func WithCodeTable(codes terminology.ICD10Repository) ServiceOption {
	return func(s *Service) { s.codes = codes }
}

func NewService(store ResourceStore, opts ...ServiceOption) *Service {
	s := &Service{store: store, codes: terminology.WHO(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// GetFHIRID resolves an organizational identifier. A missing resource is
// reported with found == false and a nil error.
func (s *Service) GetFHIRID(ctx context.Context, resourceType, identifier string) (string, bool, error) {
	results, err := s.store.Search(ctx, resourceType, url.Values{"identifier": {identifier}})
	if err != nil {
		return "", false, err
	}
	for _, r := range results {
		if id, _ := fhir.GetString(r, "id"); id != "" {
			return id, true, nil
		}
	}
	return "", false, nil
}

// GetIdentifierByFHIRID returns the organizational identifier of a stored
// resource.
func (s *Service) GetIdentifierByFHIRID(ctx context.Context, resourceType, fhirID string) (string, error) {
	res, err := s.ReadResource(ctx, resourceType, fhirID)
	if err != nil {
		return "", err
	}
	identifier, _ := fhir.GetString(res, "identifier", 0, "value")
	if identifier == "" {
		return "", malformed(resourceType, "identifier")
	}
	return identifier, nil
}

// IsResourcePresent reports whether the store holds resourceType/fhirID.
func (s *Service) IsResourcePresent(ctx context.Context, resourceType, fhirID string) (bool, error) {
	_, err := s.store.Read(ctx, resourceType, fhirID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fhir.ErrResourceNotFound) {
		return false, nil
	}
	return false, err
}

// ReadResource fetches a resource, reporting absence as a
// *NonexistentResourceError.
func (s *Service) ReadResource(ctx context.Context, resourceType, fhirID string) (map[string]interface{}, error) {
	res, err := s.store.Read(ctx, resourceType, fhirID)
	if err != nil {
		return nil, nonexistent(err, resourceType, fhirID)
	}
	return res, nil
}

func nonexistent(err error, resourceType, id string) error {
	if errors.Is(err, fhir.ErrResourceNotFound) {
		return &NonexistentResourceError{ResourceType: resourceType, ID: id, Err: err}
	}
	return err
}

// resolve is GetFHIRID for operations that need the target to exist.
func (s *Service) resolve(ctx context.Context, resourceType, identifier string) (string, error) {
	id, found, err := s.GetFHIRID(ctx, resourceType, identifier)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &NonexistentResourceError{ResourceType: resourceType, ID: identifier}
	}
	return id, nil
}

func (s *Service) resolveAll(ctx context.Context, resourceType string, identifiers []string) ([]string, error) {
	ids := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		id, err := s.resolve(ctx, resourceType, identifier)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) identifiersOf(ctx context.Context, resourceType string, fhirIDs []string) ([]string, error) {
	out := make([]string, 0, len(fhirIDs))
	for _, id := range fhirIDs {
		identifier, err := s.GetIdentifierByFHIRID(ctx, resourceType, id)
		if err != nil {
			return nil, err
		}
		out = append(out, identifier)
	}
	return out, nil
}

func (s *Service) ensurePresent(ctx context.Context, resourceType, fhirID string) error {
	present, err := s.IsResourcePresent(ctx, resourceType, fhirID)
	if err != nil {
		return err
	}
	if !present {
		return &NonexistentResourceError{ResourceType: resourceType, ID: fhirID}
	}
	return nil
}

// searchIDs runs a search and returns the ids of the matches.
func (s *Service) searchIDs(ctx context.Context, resourceType string, params url.Values) ([]string, error) {
	results, err := s.store.Search(ctx, resourceType, params)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if id, _ := fhir.GetString(r, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Service) create(ctx context.Context, resourceType string, resource map[string]interface{}) (string, error) {
	delete(resource, "id")
	id, err := s.store.Create(ctx, resourceType, resource)
	if err != nil {
		return "", err
	}
	s.logger.Debug().Str("resource_type", resourceType).Str("fhir_id", id).Msg("resource created")
	return id, nil
}

// checkCodes resolves every code against the service's code table. Codes the
// table does not hold are reported as a *ValidationError.
func (s *Service) checkCodes(ctx context.Context, entity, field string, codes ...string) error {
	for _, code := range codes {
		_, err := terminology.Resolve(ctx, s.codes, code)
		if errors.Is(err, terminology.ErrCodeNotFound) {
			return &ValidationError{Entity: entity, Field: field, Value: code, Err: ErrValueNotAllowed}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) put(ctx context.Context, resourceType, fhirID string, resource map[string]interface{}) error {
	resource["id"] = fhirID
	if err := s.store.Update(ctx, resourceType, fhirID, resource); err != nil {
		return nonexistent(err, resourceType, fhirID)
	}
	return nil
}

func (s *Service) remove(ctx context.Context, resourceType, fhirID string) error {
	if err := s.store.Delete(ctx, resourceType, fhirID); err != nil {
		return nonexistent(err, resourceType, fhirID)
	}
	s.logger.Debug().Str("resource_type", resourceType).Str("fhir_id", fhirID).Msg("resource deleted")
	return nil
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

func (s *Service) UploadDonor(ctx context.Context, d *SampleDonor) (string, error) {
	res, err := d.ToFHIR()
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourcePatient, res)
	if err != nil {
		return "", err
	}
	d.fhirID = id
	return id, nil
}

func (s *Service) UploadSample(ctx context.Context, sample *Sample) (string, error) {
	donorID := sample.subjectFHIRID
	if donorID == "" {
		var err error
		if donorID, err = s.resolve(ctx, ResourcePatient, sample.donorIdentifier); err != nil {
			return "", err
		}
	}
	res, err := sample.ToFHIR(donorID)
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceSpecimen, res)
	if err != nil {
		return "", err
	}
	sample.fhirID = id
	sample.subjectFHIRID = donorID
	return id, nil
}

func (s *Service) UploadObservation(ctx context.Context, o *Observation) (string, error) {
	if err := s.checkCodes(ctx, entityObservation, "icd10_code", o.icd10Code); err != nil {
		return "", err
	}
	patientID, sampleID := o.patientFHIRID, o.sampleFHIRID
	var err error
	if patientID == "" {
		if patientID, err = s.resolve(ctx, ResourcePatient, o.patientIdentifier); err != nil {
			return "", err
		}
	}
	if sampleID == "" {
		if sampleID, err = s.resolve(ctx, ResourceSpecimen, o.sampleIdentifier); err != nil {
			return "", err
		}
	}
	res, err := o.ToFHIR(patientID, sampleID)
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceObservation, res)
	if err != nil {
		return "", err
	}
	o.fhirID, o.patientFHIRID, o.sampleFHIRID = id, patientID, sampleID
	return id, nil
}

// UploadDiagnosisReport stores the report and links it into the donor's
// Condition when one exists.
func (s *Service) UploadDiagnosisReport(ctx context.Context, r *DiagnosisReport) (string, error) {
	patientID, sampleID := r.patientFHIRID, r.sampleFHIRID
	observationIDs := r.observationFHIRIDs
	var err error
	if patientID == "" {
		if patientID, err = s.resolve(ctx, ResourcePatient, r.patientIdentifier); err != nil {
			return "", err
		}
	}
	if sampleID == "" {
		if sampleID, err = s.resolve(ctx, ResourceSpecimen, r.sampleIdentifier); err != nil {
			return "", err
		}
	}
	if len(observationIDs) < len(r.observationIdentifiers) {
		if observationIDs, err = s.resolveAll(ctx, ResourceObservation, r.observationIdentifiers); err != nil {
			return "", err
		}
	}
	res, err := r.ToFHIR(sampleID, patientID, observationIDs)
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceDiagnosticReport, res)
	if err != nil {
		return "", err
	}
	r.fhirID, r.patientFHIRID, r.sampleFHIRID = id, patientID, sampleID
	r.observationFHIRIDs = copyStrings(observationIDs)

	conditions, err := s.store.Search(ctx, ResourceCondition, url.Values{"subject": {fhir.FormatReference(ResourcePatient, patientID)}})
	if err != nil {
		return id, err
	}
	for _, data := range conditions {
		c, err := ConditionFromFHIR(data, r.patientIdentifier)
		if err != nil {
			return id, err
		}
		c.AddDiagnosisReport(id)
		if err := s.saveCondition(ctx, c); err != nil {
			return id, err
		}
	}
	return id, nil
}

// UploadCondition stores the condition. A donor has at most one condition:
// a *ConflictError is returned when one is already stored. A condition that
// links no reports picks up every report already stored for the donor.
func (s *Service) UploadCondition(ctx context.Context, c *Condition) (string, error) {
	if c.icd10Code != "" {
		if err := s.checkCodes(ctx, entityCondition, "icd10_code", c.icd10Code); err != nil {
			return "", err
		}
	}
	patientID := c.patientFHIRID
	var err error
	if patientID == "" {
		if patientID, err = s.resolve(ctx, ResourcePatient, c.patientIdentifier); err != nil {
			return "", err
		}
	}
	subject := url.Values{"subject": {fhir.FormatReference(ResourcePatient, patientID)}}
	existing, err := s.searchIDs(ctx, ResourceCondition, subject)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return "", &ConflictError{ResourceType: ResourceCondition, ExistingID: existing[0], Reason: "donor already has a condition"}
	}
	if len(c.diagnosisReportFHIRIDs) == 0 {
		reports, err := s.searchIDs(ctx, ResourceDiagnosticReport, subject)
		if err != nil {
			return "", err
		}
		for _, id := range reports {
			c.AddDiagnosisReport(id)
		}
	}
	res, err := c.ToFHIR(patientID)
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceCondition, res)
	if err != nil {
		return "", err
	}
	c.fhirID, c.patientFHIRID = id, patientID
	return id, nil
}

func (s *Service) UploadBiobank(ctx context.Context, b *Biobank) (string, error) {
	res, err := b.ToFHIR()
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceOrganization, res)
	if err != nil {
		return "", err
	}
	b.fhirID = id
	return id, nil
}

func (s *Service) UploadCollectionOrganization(ctx context.Context, o *CollectionOrganization) (string, error) {
	biobankID := o.managingBiobankFHIRID
	var err error
	if biobankID == "" {
		if biobankID, err = s.resolve(ctx, ResourceOrganization, o.managingBiobankIdentifier); err != nil {
			return "", err
		}
	}
	res, err := o.ToFHIR(biobankID)
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceOrganization, res)
	if err != nil {
		return "", err
	}
	o.fhirID, o.managingBiobankFHIRID = id, biobankID
	return id, nil
}

func (s *Service) UploadCollection(ctx context.Context, c *Collection) (string, error) {
	if err := s.checkCodes(ctx, entityCollection, "diagnoses", c.diagnoses...); err != nil {
		return "", err
	}
	orgID := c.managingCollectionOrgFHIRID
	var err error
	if orgID == "" {
		if orgID, err = s.resolve(ctx, ResourceOrganization, c.managingCollectionOrgIdentifier); err != nil {
			return "", err
		}
	}
	res, err := c.ToFHIR(orgID)
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceGroup, res)
	if err != nil {
		return "", err
	}
	c.fhirID, c.managingCollectionOrgFHIRID = id, orgID
	return id, nil
}

func (s *Service) UploadNetworkOrganization(ctx context.Context, o *NetworkOrganization) (string, error) {
	biobankID := o.managingBiobankFHIRID
	var err error
	if biobankID == "" {
		if biobankID, err = s.resolve(ctx, ResourceOrganization, o.managingBiobankIdentifier); err != nil {
			return "", err
		}
	}
	res, err := o.ToFHIR(biobankID)
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceOrganization, res)
	if err != nil {
		return "", err
	}
	o.fhirID, o.managingBiobankFHIRID = id, biobankID
	return id, nil
}

func (s *Service) UploadNetwork(ctx context.Context, n *Network) (string, error) {
	orgID := n.managingNetworkOrgFHIRID
	collectionIDs, biobankIDs := n.memberCollectionFHIRIDs, n.memberBiobankFHIRIDs
	var err error
	if orgID == "" {
		if orgID, err = s.resolve(ctx, ResourceOrganization, n.managingNetworkOrgIdentifier); err != nil {
			return "", err
		}
	}
	if len(collectionIDs) < len(n.memberCollectionIdentifiers) {
		if collectionIDs, err = s.resolveAll(ctx, ResourceGroup, n.memberCollectionIdentifiers); err != nil {
			return "", err
		}
	}
	if len(biobankIDs) < len(n.memberBiobankIdentifiers) {
		if biobankIDs, err = s.resolveAll(ctx, ResourceOrganization, n.memberBiobankIdentifiers); err != nil {
			return "", err
		}
	}
	res, err := n.ToFHIR(orgID, collectionIDs, biobankIDs)
	if err != nil {
		return "", err
	}
	id, err := s.create(ctx, ResourceGroup, res)
	if err != nil {
		return "", err
	}
	n.fhirID, n.managingNetworkOrgFHIRID = id, orgID
	n.memberCollectionFHIRIDs = copyStrings(collectionIDs)
	n.memberBiobankFHIRIDs = copyStrings(biobankIDs)
	return id, nil
}

// ---------------------------------------------------------------------------
// Build from the store
// ---------------------------------------------------------------------------

func (s *Service) BuildDonor(ctx context.Context, fhirID string) (*SampleDonor, error) {
	data, err := s.ReadResource(ctx, ResourcePatient, fhirID)
	if err != nil {
		return nil, err
	}
	return SampleDonorFromFHIR(data)
}

func (s *Service) BuildSample(ctx context.Context, fhirID string) (*Sample, error) {
	data, err := s.ReadResource(ctx, ResourceSpecimen, fhirID)
	if err != nil {
		return nil, err
	}
	donor, err := s.referencedIdentifier(ctx, data, ResourcePatient, "subject")
	if err != nil {
		return nil, err
	}
	return SampleFromFHIR(data, donor)
}

func (s *Service) BuildObservation(ctx context.Context, fhirID string) (*Observation, error) {
	data, err := s.ReadResource(ctx, ResourceObservation, fhirID)
	if err != nil {
		return nil, err
	}
	patient, err := s.referencedIdentifier(ctx, data, ResourcePatient, "subject")
	if err != nil {
		return nil, err
	}
	sample, err := s.referencedIdentifier(ctx, data, ResourceSpecimen, "specimen")
	if err != nil {
		return nil, err
	}
	return ObservationFromFHIR(data, sample, patient)
}

func (s *Service) BuildDiagnosisReport(ctx context.Context, fhirID string) (*DiagnosisReport, error) {
	data, err := s.ReadResource(ctx, ResourceDiagnosticReport, fhirID)
	if err != nil {
		return nil, err
	}
	patient, err := s.referencedIdentifier(ctx, data, ResourcePatient, "subject")
	if err != nil {
		return nil, err
	}
	sample, err := s.referencedIdentifier(ctx, data, ResourceSpecimen, "specimen", 0)
	if err != nil {
		return nil, err
	}
	observations, err := s.identifiersOf(ctx, ResourceObservation, referenceIDs(data, ResourceObservation, "result"))
	if err != nil {
		return nil, err
	}
	return DiagnosisReportFromFHIR(data, sample, patient, observations)
}

func (s *Service) BuildCondition(ctx context.Context, fhirID string) (*Condition, error) {
	data, err := s.ReadResource(ctx, ResourceCondition, fhirID)
	if err != nil {
		return nil, err
	}
	patient, err := s.referencedIdentifier(ctx, data, ResourcePatient, "subject")
	if err != nil {
		return nil, err
	}
	return ConditionFromFHIR(data, patient)
}

func (s *Service) BuildBiobank(ctx context.Context, fhirID string) (*Biobank, error) {
	data, err := s.ReadResource(ctx, ResourceOrganization, fhirID)
	if err != nil {
		return nil, err
	}
	return BiobankFromFHIR(data)
}

func (s *Service) BuildCollectionOrganization(ctx context.Context, fhirID string) (*CollectionOrganization, error) {
	data, err := s.ReadResource(ctx, ResourceOrganization, fhirID)
	if err != nil {
		return nil, err
	}
	biobank, err := s.referencedIdentifier(ctx, data, ResourceOrganization, "partOf")
	if err != nil {
		return nil, err
	}
	return CollectionOrganizationFromFHIR(data, biobank)
}

func (s *Service) BuildCollection(ctx context.Context, fhirID string) (*Collection, error) {
	data, err := s.ReadResource(ctx, ResourceGroup, fhirID)
	if err != nil {
		return nil, err
	}
	org, err := s.referencedIdentifier(ctx, data, ResourceOrganization, "managingEntity")
	if err != nil {
		return nil, err
	}
	return CollectionFromFHIR(data, org)
}

func (s *Service) BuildNetworkOrganization(ctx context.Context, fhirID string) (*NetworkOrganization, error) {
	data, err := s.ReadResource(ctx, ResourceOrganization, fhirID)
	if err != nil {
		return nil, err
	}
	biobank, err := s.referencedIdentifier(ctx, data, ResourceOrganization, "partOf")
	if err != nil {
		return nil, err
	}
	return NetworkOrganizationFromFHIR(data, biobank)
}

func (s *Service) BuildNetwork(ctx context.Context, fhirID string) (*Network, error) {
	data, err := s.ReadResource(ctx, ResourceGroup, fhirID)
	if err != nil {
		return nil, err
	}
	org, err := s.referencedIdentifier(ctx, data, ResourceOrganization, "managingEntity")
	if err != nil {
		return nil, err
	}
	collections, err := s.identifiersOf(ctx, ResourceGroup, extensionReferenceIDs(data, ExtNetworkMemberCollection, ResourceGroup))
	if err != nil {
		return nil, err
	}
	biobanks, err := s.identifiersOf(ctx, ResourceOrganization, extensionReferenceIDs(data, ExtNetworkMemberBiobank, ResourceOrganization))
	if err != nil {
		return nil, err
	}
	return NetworkFromFHIR(data, org, collections, biobanks)
}

// referencedIdentifier follows the reference at path and returns the
// organizational identifier of its target.
func (s *Service) referencedIdentifier(ctx context.Context, data map[string]interface{}, resourceType string, path ...interface{}) (string, error) {
	id := referenceID(data, resourceType, path...)
	if id == "" {
		rt, _ := fhir.GetString(data, "resourceType")
		return "", malformed(rt, fmt.Sprint(path[0]))
	}
	return s.GetIdentifierByFHIRID(ctx, resourceType, id)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// UpdateResource replaces a stored resource with the given content.
func (s *Service) UpdateResource(ctx context.Context, resourceType, fhirID string, resource map[string]interface{}) error {
	body := make(map[string]interface{}, len(resource)+1)
	for k, v := range resource {
		body[k] = v
	}
	return s.put(ctx, resourceType, fhirID, body)
}

// AddDiagnosisReportsToCondition links stored reports into a condition.
func (s *Service) AddDiagnosisReportsToCondition(ctx context.Context, conditionFHIRID string, reportFHIRIDs ...string) error {
	c, err := s.BuildCondition(ctx, conditionFHIRID)
	if err != nil {
		return err
	}
	for _, id := range reportFHIRIDs {
		if err := s.ensurePresent(ctx, ResourceDiagnosticReport, id); err != nil {
			return err
		}
		c.AddDiagnosisReport(id)
	}
	return s.saveCondition(ctx, c)
}

// AddMembersToNetwork adds stored collections and biobanks to a network.
func (s *Service) AddMembersToNetwork(ctx context.Context, networkFHIRID string, collectionFHIRIDs, biobankFHIRIDs []string) error {
	n, err := s.BuildNetwork(ctx, networkFHIRID)
	if err != nil {
		return err
	}
	for _, id := range collectionFHIRIDs {
		identifier, err := s.GetIdentifierByFHIRID(ctx, ResourceGroup, id)
		if err != nil {
			return err
		}
		n.AddMemberCollection(identifier, id)
	}
	for _, id := range biobankFHIRIDs {
		identifier, err := s.GetIdentifierByFHIRID(ctx, ResourceOrganization, id)
		if err != nil {
			return err
		}
		n.AddMemberBiobank(identifier, id)
	}
	return s.saveNetwork(ctx, n)
}

func (s *Service) saveCondition(ctx context.Context, c *Condition) error {
	res, err := c.ToFHIR("")
	if err != nil {
		return err
	}
	return s.put(ctx, ResourceCondition, c.fhirID, res)
}

func (s *Service) saveDiagnosisReport(ctx context.Context, r *DiagnosisReport) error {
	res, err := r.ToFHIR("", "", nil)
	if err != nil {
		return err
	}
	return s.put(ctx, ResourceDiagnosticReport, r.fhirID, res)
}

func (s *Service) saveCollection(ctx context.Context, c *Collection) error {
	res, err := c.ToFHIR("")
	if err != nil {
		return err
	}
	return s.put(ctx, ResourceGroup, c.fhirID, res)
}

func (s *Service) saveNetwork(ctx context.Context, n *Network) error {
	res, err := n.ToFHIR("", nil, nil)
	if err != nil {
		return err
	}
	return s.put(ctx, ResourceGroup, n.fhirID, res)
}
