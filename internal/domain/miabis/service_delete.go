package miabis

import (
	"context"
	"net/url"

	"github.com/miabis/miabis/internal/platform/fhir"
)

// Deletes run dependents strictly before their parent. Nothing is rolled
// back: when a step fails, its error is returned as is, the dependents
// deleted so far stay deleted and the parent is left in place.

func subjectQuery(patientFHIRID string) url.Values {
	return url.Values{"subject": {fhir.FormatReference(ResourcePatient, patientFHIRID)}}
}

// DeleteDonor deletes the donor's samples (with their own cascades), any
// remaining reports and observations, its condition and finally the Patient.
func (s *Service) DeleteDonor(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourcePatient, fhirID); err != nil {
		return err
	}
	samples, err := s.searchIDs(ctx, ResourceSpecimen, subjectQuery(fhirID))
	if err != nil {
		return err
	}
	for _, id := range samples {
		if err := s.DeleteSample(ctx, id); err != nil {
			return err
		}
	}
	reports, err := s.searchIDs(ctx, ResourceDiagnosticReport, subjectQuery(fhirID))
	if err != nil {
		return err
	}
	for _, id := range reports {
		if err := s.DeleteDiagnosisReport(ctx, id); err != nil {
			return err
		}
	}
	observations, err := s.searchIDs(ctx, ResourceObservation, subjectQuery(fhirID))
	if err != nil {
		return err
	}
	for _, id := range observations {
		if err := s.DeleteObservation(ctx, id); err != nil {
			return err
		}
	}
	conditions, err := s.searchIDs(ctx, ResourceCondition, subjectQuery(fhirID))
	if err != nil {
		return err
	}
	for _, id := range conditions {
		if err := s.remove(ctx, ResourceCondition, id); err != nil {
			return err
		}
	}
	s.logger.Info().
		Str("donor", fhirID).
		Int("samples", len(samples)).
		Int("conditions", len(conditions)).
		Msg("deleting donor")
	return s.remove(ctx, ResourcePatient, fhirID)
}

// DeleteSample deletes the sample's reports and observations, removes it
// from any collection (recomputing that collection) and deletes the Specimen.
func (s *Service) DeleteSample(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourceSpecimen, fhirID); err != nil {
		return err
	}
	bySpecimen := url.Values{"specimen": {fhir.FormatReference(ResourceSpecimen, fhirID)}}
	reports, err := s.searchIDs(ctx, ResourceDiagnosticReport, bySpecimen)
	if err != nil {
		return err
	}
	for _, id := range reports {
		if err := s.DeleteDiagnosisReport(ctx, id); err != nil {
			return err
		}
	}
	observations, err := s.searchIDs(ctx, ResourceObservation, bySpecimen)
	if err != nil {
		return err
	}
	for _, id := range observations {
		if err := s.DeleteObservation(ctx, id); err != nil {
			return err
		}
	}
	if err := s.unlinkSample(ctx, fhirID); err != nil {
		return err
	}
	return s.remove(ctx, ResourceSpecimen, fhirID)
}

// DeleteObservation removes the observation from the result list of every
// report citing it, then deletes it.
func (s *Service) DeleteObservation(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourceObservation, fhirID); err != nil {
		return err
	}
	reports, err := s.searchIDs(ctx, ResourceDiagnosticReport, url.Values{"result": {fhir.FormatReference(ResourceObservation, fhirID)}})
	if err != nil {
		return err
	}
	for _, id := range reports {
		r, err := s.BuildDiagnosisReport(ctx, id)
		if err != nil {
			return err
		}
		if !r.RemoveObservation(fhirID) {
			continue
		}
		if err := s.saveDiagnosisReport(ctx, r); err != nil {
			return err
		}
	}
	return s.remove(ctx, ResourceObservation, fhirID)
}

// DeleteDiagnosisReport scrubs the report from every Condition of its
// subject, then deletes it.
func (s *Service) DeleteDiagnosisReport(ctx context.Context, fhirID string) error {
	data, err := s.ReadResource(ctx, ResourceDiagnosticReport, fhirID)
	if err != nil {
		return err
	}
	if patientID := referenceID(data, ResourcePatient, "subject"); patientID != "" {
		conditions, err := s.store.Search(ctx, ResourceCondition, subjectQuery(patientID))
		if err != nil {
			return err
		}
		for _, cond := range conditions {
			if !containsString(referenceIDs(cond, ResourceDiagnosticReport, "stage", 0, "assessment"), fhirID) {
				continue
			}
			id, _ := fhir.GetString(cond, "id")
			c, err := s.BuildCondition(ctx, id)
			if err != nil {
				return err
			}
			c.RemoveDiagnosisReport(fhirID)
			if err := s.saveCondition(ctx, c); err != nil {
				return err
			}
		}
	}
	return s.remove(ctx, ResourceDiagnosticReport, fhirID)
}

func (s *Service) DeleteCondition(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourceCondition, fhirID); err != nil {
		return err
	}
	return s.remove(ctx, ResourceCondition, fhirID)
}

// DeleteCollection removes the collection from every network, then deletes it.
func (s *Service) DeleteCollection(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourceGroup, fhirID); err != nil {
		return err
	}
	if err := s.unlinkFromNetworks(ctx, ExtNetworkMemberCollection, ResourceGroup, fhirID); err != nil {
		return err
	}
	return s.remove(ctx, ResourceGroup, fhirID)
}

// DeleteCollectionOrganization deletes the collections it manages first.
func (s *Service) DeleteCollectionOrganization(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourceOrganization, fhirID); err != nil {
		return err
	}
	collections, err := s.searchIDs(ctx, ResourceGroup, url.Values{
		"managing-entity": {fhir.FormatReference(ResourceOrganization, fhirID)},
		"_profile":        {ProfileCollection},
	})
	if err != nil {
		return err
	}
	for _, id := range collections {
		if err := s.DeleteCollection(ctx, id); err != nil {
			return err
		}
	}
	return s.remove(ctx, ResourceOrganization, fhirID)
}

func (s *Service) DeleteNetwork(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourceGroup, fhirID); err != nil {
		return err
	}
	return s.remove(ctx, ResourceGroup, fhirID)
}

// DeleteNetworkOrganization deletes the networks it manages first.
func (s *Service) DeleteNetworkOrganization(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourceOrganization, fhirID); err != nil {
		return err
	}
	networks, err := s.searchIDs(ctx, ResourceGroup, url.Values{
		"managing-entity": {fhir.FormatReference(ResourceOrganization, fhirID)},
		"_profile":        {ProfileNetwork},
	})
	if err != nil {
		return err
	}
	for _, id := range networks {
		if err := s.DeleteNetwork(ctx, id); err != nil {
			return err
		}
	}
	return s.remove(ctx, ResourceOrganization, fhirID)
}

// DeleteBiobank deletes its collection and network organizations (with their
// collections and networks), removes it from every network and deletes it.
func (s *Service) DeleteBiobank(ctx context.Context, fhirID string) error {
	if err := s.ensurePresent(ctx, ResourceOrganization, fhirID); err != nil {
		return err
	}
	partOf := fhir.FormatReference(ResourceOrganization, fhirID)
	collectionOrgs, err := s.searchIDs(ctx, ResourceOrganization, url.Values{
		"partof":   {partOf},
		"_profile": {ProfileCollectionOrganization},
	})
	if err != nil {
		return err
	}
	for _, id := range collectionOrgs {
		if err := s.DeleteCollectionOrganization(ctx, id); err != nil {
			return err
		}
	}
	networkOrgs, err := s.searchIDs(ctx, ResourceOrganization, url.Values{
		"partof":   {partOf},
		"_profile": {ProfileNetworkOrganization},
	})
	if err != nil {
		return err
	}
	for _, id := range networkOrgs {
		if err := s.DeleteNetworkOrganization(ctx, id); err != nil {
			return err
		}
	}
	if err := s.unlinkFromNetworks(ctx, ExtNetworkMemberBiobank, ResourceOrganization, fhirID); err != nil {
		return err
	}
	return s.remove(ctx, ResourceOrganization, fhirID)
}

// unlinkFromNetworks drops a member reference from every network listing it.
// Only the managing organization is resolved; member identifiers are not
// needed to rewrite the member extensions.
func (s *Service) unlinkFromNetworks(ctx context.Context, field ExtensionField, resourceType, fhirID string) error {
	groups, err := s.store.Search(ctx, ResourceGroup, url.Values{"_profile": {ProfileNetwork}})
	if err != nil {
		return err
	}
	for _, g := range groups {
		if !containsString(extensionReferenceIDs(g, field, resourceType), fhirID) {
			continue
		}
		org, err := s.referencedIdentifier(ctx, g, ResourceOrganization, "managingEntity")
		if err != nil {
			return err
		}
		n, err := NetworkFromFHIR(g, org, nil, nil)
		if err != nil {
			return err
		}
		if field == ExtNetworkMemberCollection {
			n.RemoveMemberCollection(fhirID)
		} else {
			n.RemoveMemberBiobank(fhirID)
		}
		if err := s.saveNetwork(ctx, n); err != nil {
			return err
		}
		s.logger.Debug().Str("network", n.fhirID).Str("member", fhir.FormatReference(resourceType, fhirID)).Msg("member unlinked from network")
	}
	return nil
}
