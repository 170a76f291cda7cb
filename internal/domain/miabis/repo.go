package miabis

import (
	"context"
	"net/url"
)

// FHIR resource types the service reads and writes.
const (
	ResourcePatient          = "Patient"
	ResourceSpecimen         = "Specimen"
	ResourceObservation      = "Observation"
	ResourceDiagnosticReport = "DiagnosticReport"
	ResourceCondition        = "Condition"
	ResourceOrganization     = "Organization"
	ResourceGroup            = "Group"
)

// ResourceStore is the resource-level CRUD port the service orchestrates.
// Read, Update and Delete report a missing resource with an error matching
// fhir.ErrResourceNotFound. Search understands the identifier, subject,
// patient, specimen, result, partof, managing-entity and _profile
// parameters.
type ResourceStore interface {
	Create(ctx context.Context, resourceType string, resource map[string]interface{}) (string, error)
	Read(ctx context.Context, resourceType, id string) (map[string]interface{}, error)
	Update(ctx context.Context, resourceType, id string, resource map[string]interface{}) error
	Delete(ctx context.Context, resourceType, id string) error
	Search(ctx context.Context, resourceType string, params url.Values) ([]map[string]interface{}, error)
}
