package miabis

import (
	"regexp"

	"github.com/miabis/miabis/internal/platform/fhir"
)

var countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// Contact is the person to reach at an organization.
type Contact struct {
	Name    string
	Surname string
	Email   string
}

func (c Contact) validate(entity string) error {
	if err := required(entity, "contact_name", c.Name); err != nil {
		return err
	}
	if err := required(entity, "contact_surname", c.Surname); err != nil {
		return err
	}
	return required(entity, "contact_email", c.Email)
}

func (c Contact) toFHIR() []fhir.OrganizationContact {
	return []fhir.OrganizationContact{{
		Name:    &fhir.HumanName{Family: c.Surname, Given: []string{c.Name}},
		Telecom: []fhir.ContactPoint{{System: "email", Value: c.Email}},
	}}
}

func contactFromFHIR(entity string, data map[string]interface{}) (Contact, error) {
	var c Contact
	var err error
	if c.Name, err = requiredString(entity, "contact.name.given", data, "contact", 0, "name", "given", 0); err != nil {
		return c, err
	}
	if c.Surname, err = requiredString(entity, "contact.name.family", data, "contact", 0, "name", "family"); err != nil {
		return c, err
	}
	for _, t := range fhir.GetSlice(data, "contact", 0, "telecom") {
		if system, _ := fhir.GetString(t, "system"); system == "email" {
			c.Email, _ = fhir.GetString(t, "value")
		}
	}
	if c.Email == "" {
		return c, malformed(entity, "contact.telecom[email]")
	}
	return c, nil
}

// checkCountry validates an ISO 3166-1 alpha-2 country code.
func checkCountry(entity, country string) error {
	if err := required(entity, "country", country); err != nil {
		return err
	}
	if !countryPattern.MatchString(country) {
		return &ValidationError{Entity: entity, Field: "country", Value: country, Err: ErrValueNotAllowed}
	}
	return nil
}

// organizationBase holds the fields every MIABIS Organization profile shares.
type organizationBase struct {
	identifier  string
	name        string
	alias       string
	country     string
	contact     Contact
	url         string
	description string

	fhirID string
}

func (o *organizationBase) Identifier() string  { return o.identifier }
func (o *organizationBase) Name() string        { return o.name }
func (o *organizationBase) Alias() string       { return o.alias }
func (o *organizationBase) Country() string     { return o.country }
func (o *organizationBase) Contact() Contact    { return o.contact }
func (o *organizationBase) URL() string         { return o.url }
func (o *organizationBase) Description() string { return o.description }
func (o *organizationBase) FHIRID() string      { return o.fhirID }

func (o *organizationBase) SetURL(url string)                 { o.url = url }
func (o *organizationBase) SetDescription(description string) { o.description = description }

func (o *organizationBase) init(entity, identifier, name, country string, contact Contact) error {
	if err := required(entity, "identifier", identifier); err != nil {
		return err
	}
	if err := required(entity, "name", name); err != nil {
		return err
	}
	if err := checkCountry(entity, country); err != nil {
		return err
	}
	if err := contact.validate(entity); err != nil {
		return err
	}
	o.identifier = identifier
	o.name = name
	o.country = country
	o.contact = contact
	return nil
}

func (o *organizationBase) toFHIR(profile string) map[string]interface{} {
	result := newResource("Organization", profile, o.fhirID, o.identifier)
	result["name"] = o.name
	if o.alias != "" {
		result["alias"] = []string{o.alias}
	}
	result["address"] = []fhir.Address{{Country: o.country}}
	result["contact"] = o.contact.toFHIR()
	if o.url != "" {
		result["telecom"] = []fhir.ContactPoint{{System: "url", Value: o.url}}
	}
	return result
}

func (o *organizationBase) fromFHIR(entity string, data map[string]interface{}) error {
	var err error
	if o.fhirID, err = requiredString(entity, "id", data, "id"); err != nil {
		return err
	}
	identifier, err := requiredString(entity, "identifier", data, "identifier", 0, "value")
	if err != nil {
		return err
	}
	name, err := requiredString(entity, "name", data, "name")
	if err != nil {
		return err
	}
	country, err := requiredString(entity, "address.country", data, "address", 0, "country")
	if err != nil {
		return err
	}
	contact, err := contactFromFHIR(entity, data)
	if err != nil {
		return err
	}
	if err := o.init(entity, identifier, name, country, contact); err != nil {
		return err
	}
	o.alias, _ = fhir.GetString(data, "alias", 0)
	for _, t := range fhir.GetSlice(data, "telecom") {
		if system, _ := fhir.GetString(t, "system"); system == "url" {
			o.url, _ = fhir.GetString(t, "value")
		}
	}
	o.description = extensionString(data, ExtDescription)
	return nil
}
