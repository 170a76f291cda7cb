package miabis

import (
	"errors"
	"testing"
	"time"

	"github.com/miabis/miabis/internal/platform/fhir"
)

var testContact = Contact{Name: "Ada", Surname: "Lovelace", Email: "ada@example.org"}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// stored mimics what a store hands back: the resource with its id set.
func stored(t *testing.T, res map[string]interface{}, err error, id string) map[string]interface{} {
	t.Helper()
	if err != nil {
		t.Fatalf("ToFHIR: %v", err)
	}
	res["id"] = id
	return res
}

func profileOf(res map[string]interface{}) string {
	p, _ := fhir.GetString(res, "meta", "profile", 0)
	return p
}

func TestSampleDonor_RoundTrip(t *testing.T) {
	d, err := NewSampleDonor("donor-1", GenderFemale, date(1980, 5, 17), "Lifestyle")
	if err != nil {
		t.Fatalf("NewSampleDonor: %v", err)
	}
	res, err := d.ToFHIR()
	if err != nil {
		t.Fatalf("ToFHIR: %v", err)
	}
	if _, ok := res["id"]; ok {
		t.Error("unsaved donor must not carry an id")
	}
	if profileOf(res) != ProfileSampleDonor {
		t.Errorf("profile = %q", profileOf(res))
	}
	if res["birthDate"] != "1980-05-17" {
		t.Errorf("birthDate = %v", res["birthDate"])
	}
	if res["gender"] != "female" {
		t.Errorf("gender = %v", res["gender"])
	}

	res["id"] = "p1"
	got, err := SampleDonorFromFHIR(res)
	if err != nil {
		t.Fatalf("SampleDonorFromFHIR: %v", err)
	}
	if got.Identifier() != "donor-1" || got.Gender() != GenderFemale || got.DatasetType() != "Lifestyle" {
		t.Errorf("got %+v", got)
	}
	if got.DateOfBirth() == nil || !got.DateOfBirth().Equal(*date(1980, 5, 17)) {
		t.Errorf("dateOfBirth = %v", got.DateOfBirth())
	}
	if got.FHIRID() != "p1" {
		t.Errorf("FHIRID = %q, want p1", got.FHIRID())
	}

	again, err := got.ToFHIR()
	if err != nil {
		t.Fatalf("ToFHIR: %v", err)
	}
	if again["id"] != "p1" {
		t.Errorf("rebuilt donor id = %v, want p1", again["id"])
	}
}

func TestSampleDonor_Validation(t *testing.T) {
	_, err := NewSampleDonor("donor-1", Gender("m"), nil, "")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "gender" || !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("invalid gender: err = %v", err)
	}
	if _, err := NewSampleDonor("", GenderMale, nil, ""); !errors.Is(err, ErrRequiredField) {
		t.Errorf("empty identifier: err = %v", err)
	}
	if _, err := NewSampleDonor("donor-1", GenderMale, nil, "Astrology"); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("invalid dataset type: err = %v", err)
	}

	d, _ := NewSampleDonor("donor-1", GenderMale, nil, "")
	if err := d.SetGender("robot"); err == nil {
		t.Error("SetGender accepted an unknown gender")
	}
	if d.Gender() != GenderMale {
		t.Errorf("failed setter changed gender to %q", d.Gender())
	}
}

func TestSampleDonorFromFHIR_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want error
	}{
		{"missing id", map[string]interface{}{
			"identifier": []interface{}{map[string]interface{}{"value": "d1"}},
		}, ErrMalformedInput},
		{"missing identifier", map[string]interface{}{"id": "p1"}, ErrMalformedInput},
		{"bad birth date", map[string]interface{}{
			"id":         "p1",
			"identifier": []interface{}{map[string]interface{}{"value": "d1"}},
			"birthDate":  "17/05/1980",
		}, ErrInvalidType},
		{"birth date of wrong type", map[string]interface{}{
			"id":         "p1",
			"identifier": []interface{}{map[string]interface{}{"value": "d1"}},
			"birthDate":  float64(1980),
		}, ErrInvalidType},
		{"unknown gender", map[string]interface{}{
			"id":         "p1",
			"identifier": []interface{}{map[string]interface{}{"value": "d1"}},
			"gender":     "m",
		}, ErrValueNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SampleDonorFromFHIR(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSample_RoundTrip(t *testing.T) {
	s, err := NewSample("s1", "donor-1", MaterialType("DNA"))
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}
	if err := s.SetStorageTemperature(StorageTemperatureMinus60); err != nil {
		t.Fatalf("SetStorageTemperature: %v", err)
	}
	collected := time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)
	s.SetCollectedDatetime(&collected)
	s.SetBodySite("C18", "http://hl7.org/fhir/sid/icd-o-3")
	s.SetUseRestrictions("research only")
	s.SetSampleCollectionID("coll-1")

	if _, err := s.ToFHIR(""); !errors.Is(err, ErrMissingReference) {
		t.Fatalf("ToFHIR without donor id: err = %v", err)
	}
	res, err := s.ToFHIR("p1")
	res = stored(t, res, err, "sp1")
	if ref, _ := fhir.GetString(res, "subject", "reference"); ref != "Patient/p1" {
		t.Errorf("subject = %q", ref)
	}
	if code, _ := fhir.GetString(res, "type", "coding", 0, "code"); code != "DNA" {
		t.Errorf("type = %q", code)
	}
	if v, _ := fhir.GetString(res, "collection", "collectedDateTime"); v != "2021-03-04T10:00:00Z" {
		t.Errorf("collectedDateTime = %q", v)
	}

	got, err := SampleFromFHIR(res, "donor-1")
	if err != nil {
		t.Fatalf("SampleFromFHIR: %v", err)
	}
	if got.Identifier() != "s1" || got.MaterialType() != "DNA" || got.StorageTemperature() != StorageTemperatureMinus60 {
		t.Errorf("got %+v", got)
	}
	if got.CollectedDatetime() == nil || !got.CollectedDatetime().Equal(collected) {
		t.Errorf("collected = %v", got.CollectedDatetime())
	}
	if got.BodySite() != "C18" || got.UseRestrictions() != "research only" || got.SampleCollectionID() != "coll-1" {
		t.Errorf("got %+v", got)
	}
	if got.FHIRID() != "sp1" || got.SubjectFHIRID() != "p1" {
		t.Errorf("ids = %q, %q", got.FHIRID(), got.SubjectFHIRID())
	}
	if _, err := got.ToFHIR(""); err != nil {
		t.Errorf("rebuilt sample should use its cached donor id: %v", err)
	}
}

func TestSample_Validation(t *testing.T) {
	if _, err := NewSample("s1", "donor-1", MaterialType("Plasticine")); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("invalid material: err = %v", err)
	}
	if _, err := NewSample("s1", "", MaterialType("DNA")); !errors.Is(err, ErrRequiredField) {
		t.Errorf("empty donor: err = %v", err)
	}
	s, _ := NewSample("s1", "donor-1", MaterialType("DNA"))
	if err := s.SetStorageTemperature("freezing"); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("invalid temperature: err = %v", err)
	}
}

func TestObservation_RoundTrip(t *testing.T) {
	observed := time.Date(2020, 6, 1, 8, 30, 0, 0, time.UTC)
	o, err := NewObservation("", "C188", "s1", "donor-1", &observed)
	if err != nil {
		t.Fatalf("NewObservation: %v", err)
	}
	if o.Identifier() != "s1_C188" {
		t.Errorf("derived identifier = %q", o.Identifier())
	}
	if _, err := o.ToFHIR("p1", ""); !errors.Is(err, ErrMissingReference) {
		t.Fatalf("ToFHIR without specimen: err = %v", err)
	}
	res, err := o.ToFHIR("p1", "sp1")
	res = stored(t, res, err, "o1")
	if code, _ := fhir.GetString(res, "code", "coding", 0, "code"); code != diagnosisLOINC {
		t.Errorf("code = %q", code)
	}
	if code, _ := fhir.GetString(res, "valueCodeableConcept", "coding", 0, "code"); code != "C18.8" {
		t.Errorf("diagnosis = %q, want C18.8", code)
	}
	if ref, _ := fhir.GetString(res, "specimen", "reference"); ref != "Specimen/sp1" {
		t.Errorf("specimen = %q", ref)
	}

	got, err := ObservationFromFHIR(res, "s1", "donor-1")
	if err != nil {
		t.Fatalf("ObservationFromFHIR: %v", err)
	}
	if got.ICD10Code() != "C18.8" || got.Identifier() != "s1_C188" {
		t.Errorf("got code %q identifier %q", got.ICD10Code(), got.Identifier())
	}
	if got.DiagnosisObservedDatetime() == nil || !got.DiagnosisObservedDatetime().Equal(observed) {
		t.Errorf("observed = %v", got.DiagnosisObservedDatetime())
	}
	if got.FHIRID() != "o1" || got.PatientFHIRID() != "p1" || got.SampleFHIRID() != "sp1" {
		t.Errorf("ids = %q %q %q", got.FHIRID(), got.PatientFHIRID(), got.SampleFHIRID())
	}
}

func TestObservation_InvalidCode(t *testing.T) {
	for _, code := range []string{"XYZ", "D49", "c18", "C99", "A00.99", "B9999", "A00.5"} {
		if _, err := NewObservation("", code, "s1", "donor-1", nil); !errors.Is(err, ErrValueNotAllowed) {
			t.Errorf("code %q: err = %v", code, err)
		}
	}
	if _, err := NewObservation("", "", "s1", "donor-1", nil); !errors.Is(err, ErrRequiredField) {
		t.Errorf("empty code: err = %v", err)
	}
}

func TestDiagnosisReport_RoundTrip(t *testing.T) {
	r, err := NewDiagnosisReport("", "s1", "donor-1", []string{"s1_C188", "s1_C50"})
	if err != nil {
		t.Fatalf("NewDiagnosisReport: %v", err)
	}
	if r.Identifier() != "s1" {
		t.Errorf("default identifier = %q, want s1", r.Identifier())
	}
	if _, err := r.ToFHIR("sp1", "p1", []string{"o1"}); !errors.Is(err, ErrMissingReference) {
		t.Errorf("short observation list: err = %v", err)
	}
	res, err := r.ToFHIR("sp1", "p1", []string{"o1", "o2"})
	res = stored(t, res, err, "r1")
	if got := referenceIDs(res, "Observation", "result"); len(got) != 2 || got[0] != "o1" || got[1] != "o2" {
		t.Errorf("result = %v", got)
	}

	got, err := DiagnosisReportFromFHIR(res, "s1", "donor-1", []string{"s1_C188", "s1_C50"})
	if err != nil {
		t.Fatalf("DiagnosisReportFromFHIR: %v", err)
	}
	if !got.RemoveObservation("o1") {
		t.Fatal("RemoveObservation(o1) = false")
	}
	if ids := got.ObservationIdentifiers(); len(ids) != 1 || ids[0] != "s1_C50" {
		t.Errorf("identifiers after remove = %v", ids)
	}
	if got.RemoveObservation("o1") {
		t.Error("second RemoveObservation(o1) = true")
	}
	again, err := got.ToFHIR("", "", nil)
	if err != nil {
		t.Fatalf("ToFHIR from cache: %v", err)
	}
	if ids := referenceIDs(again, "Observation", "result"); len(ids) != 1 || ids[0] != "o2" {
		t.Errorf("result after remove = %v", ids)
	}
}

func TestCondition_RoundTrip(t *testing.T) {
	c, err := NewCondition("", "donor-1", "C188")
	if err != nil {
		t.Fatalf("NewCondition: %v", err)
	}
	c.AddDiagnosisReport("r1")
	c.AddDiagnosisReport("r2")
	c.AddDiagnosisReport("r1")
	if _, err := c.ToFHIR(""); !errors.Is(err, ErrMissingReference) {
		t.Errorf("ToFHIR without patient: err = %v", err)
	}
	res, err := c.ToFHIR("p1")
	res = stored(t, res, err, "c1")
	if code, _ := fhir.GetString(res, "code", "coding", 0, "code"); code != "C18.8" {
		t.Errorf("code = %q", code)
	}

	got, err := ConditionFromFHIR(res, "donor-1")
	if err != nil {
		t.Fatalf("ConditionFromFHIR: %v", err)
	}
	if ids := got.DiagnosisReportFHIRIDs(); len(ids) != 2 || ids[0] != "r1" || ids[1] != "r2" {
		t.Errorf("reports = %v", ids)
	}
	if !got.RemoveDiagnosisReport("r1") || got.RemoveDiagnosisReport("r9") {
		t.Error("RemoveDiagnosisReport reported the wrong presence")
	}
	for _, code := range []string{"K95", "C99", "A00.99", "B9999"} {
		if _, err := NewCondition("", "donor-1", code); !errors.Is(err, ErrValueNotAllowed) {
			t.Errorf("code %q: err = %v", code, err)
		}
	}
}

func TestBiobank_RoundTrip(t *testing.T) {
	b, err := NewBiobank("bb-1", "Masaryk Biobank", "MMCI", "CZ", testContact)
	if err != nil {
		t.Fatalf("NewBiobank: %v", err)
	}
	b.SetURL("https://biobank.example.org")
	b.SetDescription("cancer biobank")
	b.SetJuristicPerson("Masaryk Memorial Cancer Institute")
	b.SetQualityManagementStandards([]string{"ISO 20387"})
	if err := b.SetInfrastructuralCapabilities([]string{"SampleStorage", "DataStorage"}); err != nil {
		t.Fatalf("SetInfrastructuralCapabilities: %v", err)
	}
	if err := b.SetBioprocessingCapabilities([]string{"Genomics"}); err != nil {
		t.Fatalf("SetBioprocessingCapabilities: %v", err)
	}
	res, err := b.ToFHIR()
	res = stored(t, res, err, "org1")
	if country, _ := fhir.GetString(res, "address", 0, "country"); country != "CZ" {
		t.Errorf("country = %q", country)
	}

	got, err := BiobankFromFHIR(res)
	if err != nil {
		t.Fatalf("BiobankFromFHIR: %v", err)
	}
	if got.Alias() != "MMCI" || got.URL() != "https://biobank.example.org" || got.Description() != "cancer biobank" {
		t.Errorf("got %+v", got)
	}
	if got.Contact() != testContact {
		t.Errorf("contact = %+v", got.Contact())
	}
	if got.JuristicPerson() != "Masaryk Memorial Cancer Institute" {
		t.Errorf("juristic person = %q", got.JuristicPerson())
	}
	if caps := got.InfrastructuralCapabilities(); len(caps) != 2 || caps[1] != "DataStorage" {
		t.Errorf("infrastructural = %v", caps)
	}
	if q := got.QualityManagementStandards(); len(q) != 1 || q[0] != "ISO 20387" {
		t.Errorf("quality = %v", q)
	}
}

func TestOrganization_Validation(t *testing.T) {
	tests := []struct {
		name string
		make func() error
		want error
	}{
		{"lowercase country", func() error {
			_, err := NewBiobank("bb", "n", "a", "cz", testContact)
			return err
		}, ErrValueNotAllowed},
		{"three letter country", func() error {
			_, err := NewBiobank("bb", "n", "a", "CZE", testContact)
			return err
		}, ErrValueNotAllowed},
		{"missing alias", func() error {
			_, err := NewBiobank("bb", "n", "", "CZ", testContact)
			return err
		}, ErrRequiredField},
		{"missing email", func() error {
			_, err := NewBiobank("bb", "n", "a", "CZ", Contact{Name: "A", Surname: "B"})
			return err
		}, ErrRequiredField},
		{"collection org alias", func() error {
			_, err := NewCollectionOrganization("co", "n", "bb", "", "CZ", testContact)
			return err
		}, ErrRequiredField},
		{"network org juristic person", func() error {
			_, err := NewNetworkOrganization("no", "n", "bb", "CZ", "", testContact)
			return err
		}, ErrRequiredField},
	}
	for _, tt := range tests {
		if err := tt.make(); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	b, _ := NewBiobank("bb", "n", "a", "CZ", testContact)
	if err := b.SetOrganisationalCapabilities([]string{"Teleportation"}); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("invalid capability: err = %v", err)
	}
}

func TestCollectionOrganization_RoundTrip(t *testing.T) {
	o, err := NewCollectionOrganization("co-1", "Colorectal", "bb-1", "CRC", "CZ", testContact)
	if err != nil {
		t.Fatalf("NewCollectionOrganization: %v", err)
	}
	if err := o.SetDatasetTypes([]string{"Clinical", "Genomic"}); err != nil {
		t.Fatal(err)
	}
	if err := o.SetSampleSources([]string{"Human"}); err != nil {
		t.Fatal(err)
	}
	if err := o.SetCollectionDesigns([]string{"CaseControl"}); err != nil {
		t.Fatal(err)
	}
	o.SetPublications([]string{"doi:10.1000/1"})
	if err := o.SetUseAndAccessConditions([]string{"Wormholes"}); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("invalid condition: err = %v", err)
	}

	if _, err := o.ToFHIR(""); !errors.Is(err, ErrMissingReference) {
		t.Errorf("ToFHIR without biobank: err = %v", err)
	}
	res, err := o.ToFHIR("org1")
	res = stored(t, res, err, "org2")
	if ref, _ := fhir.GetString(res, "partOf", "reference"); ref != "Organization/org1" {
		t.Errorf("partOf = %q", ref)
	}

	got, err := CollectionOrganizationFromFHIR(res, "bb-1")
	if err != nil {
		t.Fatalf("CollectionOrganizationFromFHIR: %v", err)
	}
	if got.ManagingBiobankFHIRID() != "org1" || got.Alias() != "CRC" {
		t.Errorf("got %+v", got)
	}
	if d := got.DatasetTypes(); len(d) != 2 || d[0] != "Clinical" {
		t.Errorf("dataset types = %v", d)
	}
	if p := got.Publications(); len(p) != 1 {
		t.Errorf("publications = %v", p)
	}
}

func TestNetworkOrganization_RoundTrip(t *testing.T) {
	o, err := NewNetworkOrganization("no-1", "BBMRI.cz", "bb-1", "CZ", "BBMRI-ERIC", testContact)
	if err != nil {
		t.Fatalf("NewNetworkOrganization: %v", err)
	}
	if err := o.SetCommonCollaborationTopics([]string{"SOP", "MTA"}); err != nil {
		t.Fatal(err)
	}
	res, err := o.ToFHIR("org1")
	res = stored(t, res, err, "org3")

	got, err := NetworkOrganizationFromFHIR(res, "bb-1")
	if err != nil {
		t.Fatalf("NetworkOrganizationFromFHIR: %v", err)
	}
	if got.JuristicPerson() != "BBMRI-ERIC" {
		t.Errorf("juristic person = %q", got.JuristicPerson())
	}
	if topics := got.CommonCollaborationTopics(); len(topics) != 2 || topics[1] != "MTA" {
		t.Errorf("topics = %v", topics)
	}

	delete(res, "extension")
	if _, err := NetworkOrganizationFromFHIR(res, "bb-1"); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("missing juristic person: err = %v", err)
	}
}

func TestCollection_ToFHIR(t *testing.T) {
	c, err := NewCollection("coll-1", "Colorectal samples", "co-1")
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	if err := c.SetGenders([]Gender{GenderMale}); err != nil {
		t.Fatal(err)
	}
	if err := c.SetMaterialTypes([]MaterialType{"DNA"}); err != nil {
		t.Fatal(err)
	}
	c.SetAgeRange(intPtr(20), intPtr(80))
	c.AddSampleFHIRIDs("s1", "s2", "s1")

	if _, err := c.ToFHIR(""); !errors.Is(err, ErrMissingReference) {
		t.Fatalf("ToFHIR without organization: err = %v", err)
	}
	res, err := c.ToFHIR("org2")
	if err != nil {
		t.Fatalf("ToFHIR: %v", err)
	}
	chars := fhir.GetSlice(res, "characteristic")
	if len(chars) != 3 {
		t.Fatalf("characteristics = %d, want 3", len(chars))
	}
	for i, want := range []string{CharacteristicAge, CharacteristicSex, CharacteristicMaterialType} {
		if code, _ := fhir.GetString(chars[i], "code", "coding", 0, "code"); code != want {
			t.Errorf("characteristic %d = %q, want %q", i, code, want)
		}
	}
	if low, _ := fhir.GetNumber(chars[0], "valueRange", "low", "value"); low != 20 {
		t.Errorf("age low = %v", low)
	}

	ext := fhir.GetSlice(res, "extension")
	if len(ext) < 2 {
		t.Fatalf("extensions = %v", ext)
	}
	for i, want := range []string{"Specimen/s1", "Specimen/s2"} {
		e := ext[len(ext)-2+i]
		if url, _ := fhir.GetString(e, "url"); url != ExtCollectionMember.URL() {
			t.Errorf("extension %d url = %q", i, url)
		}
		if ref, _ := fhir.GetString(e, "valueReference", "reference"); ref != want {
			t.Errorf("member %d = %q, want %q", i, ref, want)
		}
	}
}

func TestCollection_SetDiagnosesRejectsUnknownCodes(t *testing.T) {
	c, _ := NewCollection("coll-1", "Colorectal samples", "co-1")
	for _, code := range []string{"C99", "A00.99", "B9999"} {
		err := c.SetDiagnoses([]string{"C188", code})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Value != code || !errors.Is(err, ErrValueNotAllowed) {
			t.Errorf("code %q: err = %v", code, err)
		}
	}
}

func TestCollection_RoundTrip(t *testing.T) {
	c, _ := NewCollection("coll-1", "Colorectal samples", "co-1")
	c.SetGenders([]Gender{GenderFemale, GenderMale})
	c.SetStorageTemperatures([]StorageTemperature{StorageTemperatureLiquidN2})
	c.SetMaterialTypes([]MaterialType{"Serum"})
	c.SetDiagnoses([]string{"C188", "C50"})
	c.SetInclusionCriteria([]string{"HealthStatus"})
	c.SetNumberOfSubjects(intPtr(12))
	c.SetAgeRange(nil, intPtr(65))
	c.SetAgeUnit("mo")
	c.SetSampleFHIRIDs([]string{"s1"})

	res, err := c.ToFHIR("org2")
	res = stored(t, res, err, "g1")
	got, err := CollectionFromFHIR(res, "co-1")
	if err != nil {
		t.Fatalf("CollectionFromFHIR: %v", err)
	}
	if g := got.Genders(); len(g) != 2 || g[0] != GenderFemale {
		t.Errorf("genders = %v", g)
	}
	if d := got.Diagnoses(); len(d) != 2 || d[0] != "C18.8" {
		t.Errorf("diagnoses = %v", d)
	}
	if got.AgeRangeLow() != nil || got.AgeRangeHigh() == nil || *got.AgeRangeHigh() != 65 {
		t.Errorf("age range = %v..%v", got.AgeRangeLow(), got.AgeRangeHigh())
	}
	if got.AgeUnit() != "mo" {
		t.Errorf("age unit = %q", got.AgeUnit())
	}
	if n := got.NumberOfSubjects(); n == nil || *n != 12 {
		t.Errorf("subjects = %v", n)
	}
	if s := got.SampleFHIRIDs(); len(s) != 1 || s[0] != "s1" {
		t.Errorf("samples = %v", s)
	}
	if got.FHIRID() != "g1" || got.ManagingCollectionOrgFHIRID() != "org2" {
		t.Errorf("ids = %q %q", got.FHIRID(), got.ManagingCollectionOrgFHIRID())
	}
}

func TestCollection_Validation(t *testing.T) {
	c, _ := NewCollection("coll-1", "n", "co-1")
	if err := c.SetGenders([]Gender{"m"}); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("genders: err = %v", err)
	}
	if err := c.SetDiagnoses([]string{"C18", "nope"}); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("diagnoses: err = %v", err)
	}
	if err := c.SetNumberOfSubjects(intPtr(-1)); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("subjects: err = %v", err)
	}
	if err := c.SetAgeUnit("years"); !errors.Is(err, ErrValueNotAllowed) {
		t.Errorf("age unit: err = %v", err)
	}
	if c.RemoveSampleFHIRID("x") {
		t.Error("RemoveSampleFHIRID reported a missing member as present")
	}
}

func TestNetwork_RoundTrip(t *testing.T) {
	n, err := NewNetwork("net-1", "Cancer network", "no-1", []string{"coll-1"}, []string{"bb-1"})
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	n.SetDescription("colorectal cancer research")
	if _, err := n.ToFHIR("org3", nil, []string{"org1"}); !errors.Is(err, ErrMissingReference) {
		t.Errorf("unresolved member: err = %v", err)
	}
	res, err := n.ToFHIR("org3", []string{"g1"}, []string{"org1"})
	res = stored(t, res, err, "g2")
	if res["actual"] != false || res["type"] != "person" {
		t.Errorf("actual = %v type = %v", res["actual"], res["type"])
	}
	ext := fhir.GetSlice(res, "extension")
	wantURLs := []string{ExtNetworkMemberCollection.URL(), ExtNetworkMemberBiobank.URL(), ExtDescription.URL()}
	if len(ext) != len(wantURLs) {
		t.Fatalf("extensions = %d, want %d", len(ext), len(wantURLs))
	}
	for i, want := range wantURLs {
		if url, _ := fhir.GetString(ext[i], "url"); url != want {
			t.Errorf("extension %d = %q, want %q", i, url, want)
		}
	}

	got, err := NetworkFromFHIR(res, "no-1", []string{"coll-1"}, []string{"bb-1"})
	if err != nil {
		t.Fatalf("NetworkFromFHIR: %v", err)
	}
	if got.Description() != "colorectal cancer research" {
		t.Errorf("description = %q", got.Description())
	}
	if got.AddMemberCollection("coll-1", "g1") {
		t.Error("AddMemberCollection accepted a duplicate")
	}
	if !got.AddMemberBiobank("bb-2", "org9") {
		t.Error("AddMemberBiobank rejected a new member")
	}
	if !got.RemoveMemberCollection("g1") {
		t.Error("RemoveMemberCollection(g1) = false")
	}
	if ids := got.MemberCollectionIdentifiers(); len(ids) != 0 {
		t.Errorf("collection identifiers = %v", ids)
	}
	if ids := got.MemberBiobankFHIRIDs(); len(ids) != 2 || ids[1] != "org9" {
		t.Errorf("biobank ids = %v", ids)
	}
}

func TestVocabularies(t *testing.T) {
	if !GenderUnknown.IsValid() || Gender("x").IsValid() {
		t.Error("Gender.IsValid")
	}
	if !StorageTemperatureMinus18.IsValid() || StorageTemperature("-20").IsValid() {
		t.Error("StorageTemperature.IsValid")
	}
	if !MaterialType("Blood").IsValid() || MaterialType("blood").IsValid() {
		t.Error("MaterialType.IsValid")
	}
	codes := StorageTemperatures.Codes()
	codes[0] = "changed"
	if StorageTemperatures.Codes()[0] != string(StorageTemperatureRoom) {
		t.Error("Codes must return a copy")
	}
}
