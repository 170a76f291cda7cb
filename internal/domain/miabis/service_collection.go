package miabis

import (
	"context"
	"net/url"

	"github.com/miabis/miabis/internal/domain/terminology"
	"github.com/miabis/miabis/internal/platform/fhir"
)

// aggregates accumulates the derived fields of a collection in first-seen
// order.
type aggregates struct {
	genders   []Gender
	temps     []StorageTemperature
	materials []MaterialType
	diagnoses []string
	donors    map[string]struct{}
	ageLow    *int
	ageHigh   *int

	seen map[string]struct{}
}

func newAggregates() *aggregates {
	return &aggregates{donors: map[string]struct{}{}, seen: map[string]struct{}{}}
}

// first reports whether key is seen for the first time.
func (a *aggregates) first(kind, key string) bool {
	k := kind + "\x00" + key
	if _, ok := a.seen[k]; ok {
		return false
	}
	a.seen[k] = struct{}{}
	return true
}

func (a *aggregates) add(donor *SampleDonor, sample *Sample, observations []*Observation) {
	a.donors[donor.fhirID] = struct{}{}
	if donor.gender != "" && a.first("gender", string(donor.gender)) {
		a.genders = append(a.genders, donor.gender)
	}
	if sample.storageTemperature != "" && a.first("temp", string(sample.storageTemperature)) {
		a.temps = append(a.temps, sample.storageTemperature)
	}
	if a.first("material", string(sample.materialType)) {
		a.materials = append(a.materials, sample.materialType)
	}
	for _, o := range observations {
		if a.first("diagnosis", terminology.NormalizeICD10(o.icd10Code)) {
			a.diagnoses = append(a.diagnoses, o.icd10Code)
		}
		if donor.dateOfBirth == nil || o.diagnosisObservedDatetime == nil {
			continue
		}
		age := o.diagnosisObservedDatetime.Year() - donor.dateOfBirth.Year()
		if a.ageLow == nil || age < *a.ageLow {
			a.ageLow = intPtr(age)
		}
		if a.ageHigh == nil || age > *a.ageHigh {
			a.ageHigh = intPtr(age)
		}
	}
}

func (a *aggregates) apply(c *Collection) {
	c.genders = a.genders
	c.storageTemperatures = a.temps
	c.materialTypes = a.materials
	c.diagnoses = a.diagnoses
	c.ageRangeLow, c.ageRangeHigh = a.ageLow, a.ageHigh
	c.numberOfSubjects = intPtr(len(a.donors))
}

// UpdateCollectionValues recomputes a collection's aggregates from the
// membership list currently in the store and writes the result back.
func (s *Service) UpdateCollectionValues(ctx context.Context, collectionFHIRID string) error {
	c, err := s.BuildCollection(ctx, collectionFHIRID)
	if err != nil {
		return err
	}
	if err := s.recompute(ctx, c); err != nil {
		return err
	}
	return s.saveCollection(ctx, c)
}

func (s *Service) recompute(ctx context.Context, c *Collection) error {
	agg := newAggregates()
	donors := map[string]*SampleDonor{}
	for _, sampleID := range c.sampleFHIRIDs {
		specimen, err := s.ReadResource(ctx, ResourceSpecimen, sampleID)
		if err != nil {
			return err
		}
		donorID := referenceID(specimen, ResourcePatient, "subject")
		donor, ok := donors[donorID]
		if !ok {
			if donor, err = s.BuildDonor(ctx, donorID); err != nil {
				return err
			}
			donors[donorID] = donor
		}
		sample, err := SampleFromFHIR(specimen, donor.identifier)
		if err != nil {
			return err
		}
		results, err := s.store.Search(ctx, ResourceObservation, url.Values{"specimen": {fhir.FormatReference(ResourceSpecimen, sampleID)}})
		if err != nil {
			return err
		}
		observations := make([]*Observation, 0, len(results))
		for _, data := range results {
			o, err := ObservationFromFHIR(data, sample.identifier, donor.identifier)
			if err != nil {
				return err
			}
			observations = append(observations, o)
		}
		agg.add(donor, sample, observations)
	}
	agg.apply(c)
	s.logger.Debug().
		Str("collection", c.fhirID).
		Int("members", len(c.sampleFHIRIDs)).
		Int("subjects", len(agg.donors)).
		Msg("collection aggregates recomputed")
	return nil
}

// AddAlreadyPresentSamplesToExistingCollection adds stored samples to a
// collection and recomputes its aggregates.
func (s *Service) AddAlreadyPresentSamplesToExistingCollection(ctx context.Context, sampleFHIRIDs []string, collectionFHIRID string) error {
	for _, id := range sampleFHIRIDs {
		if err := s.ensurePresent(ctx, ResourceSpecimen, id); err != nil {
			return err
		}
	}
	c, err := s.BuildCollection(ctx, collectionFHIRID)
	if err != nil {
		return err
	}
	c.AddSampleFHIRIDs(sampleFHIRIDs...)
	if err := s.saveCollection(ctx, c); err != nil {
		return err
	}
	return s.UpdateCollectionValues(ctx, collectionFHIRID)
}

// AddNewSamplesToCollection uploads samples and adds them to a collection.
func (s *Service) AddNewSamplesToCollection(ctx context.Context, collectionFHIRID string, samples []*Sample) error {
	if err := s.ensurePresent(ctx, ResourceGroup, collectionFHIRID); err != nil {
		return err
	}
	ids := make([]string, 0, len(samples))
	for _, sample := range samples {
		id, err := s.UploadSample(ctx, sample)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	return s.AddAlreadyPresentSamplesToExistingCollection(ctx, ids, collectionFHIRID)
}

// collectionsWithSample returns the collections listing the sample as a
// member.
func (s *Service) collectionsWithSample(ctx context.Context, sampleFHIRID string) ([]string, error) {
	groups, err := s.store.Search(ctx, ResourceGroup, url.Values{"_profile": {ProfileCollection}})
	if err != nil {
		return nil, err
	}
	var out []string
	for _, g := range groups {
		if containsString(extensionReferenceIDs(g, ExtCollectionMember, ResourceSpecimen), sampleFHIRID) {
			id, _ := fhir.GetString(g, "id")
			out = append(out, id)
		}
	}
	return out, nil
}

// unlinkSample removes a sample from every collection holding it and
// recomputes those collections from their remaining members.
func (s *Service) unlinkSample(ctx context.Context, sampleFHIRID string) error {
	collections, err := s.collectionsWithSample(ctx, sampleFHIRID)
	if err != nil {
		return err
	}
	for _, id := range collections {
		c, err := s.BuildCollection(ctx, id)
		if err != nil {
			return err
		}
		c.RemoveSampleFHIRID(sampleFHIRID)
		if err := s.recompute(ctx, c); err != nil {
			return err
		}
		if err := s.saveCollection(ctx, c); err != nil {
			return err
		}
		s.logger.Debug().Str("collection", id).Str("sample", sampleFHIRID).Msg("sample unlinked from collection")
	}
	return nil
}
