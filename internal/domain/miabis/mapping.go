package miabis

import (
	"time"

	"github.com/miabis/miabis/internal/platform/fhir"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

// fhirDateLayouts lists the precisions FHIR allows for date and dateTime.
var fhirDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout, "2006-01", "2006"}

// newResource starts a resource with its profile, its own id when known and
// its organizational identifier.
func newResource(resourceType, profile, fhirID, identifier string) map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": resourceType,
		"meta":         fhir.ProfileMeta(profile),
	}
	if fhirID != "" {
		result["id"] = fhirID
	}
	if identifier != "" {
		result["identifier"] = []fhir.Identifier{{Value: identifier}}
	}
	return result
}

func reference(resourceType, id string) fhir.Reference {
	return fhir.Reference{Reference: fhir.FormatReference(resourceType, id)}
}

func codedExtension(field ExtensionField, v *Vocabulary, code string) fhir.Extension {
	cc := fhir.Concept(v.System, code)
	return fhir.Extension{URL: field.URL(), ValueCodeableConcept: &cc}
}

func codedExtensions(field ExtensionField, v *Vocabulary, codes []string) []fhir.Extension {
	out := make([]fhir.Extension, 0, len(codes))
	for _, c := range codes {
		out = append(out, codedExtension(field, v, c))
	}
	return out
}

func stringExtensions(field ExtensionField, values ...string) []fhir.Extension {
	var out []fhir.Extension
	for _, s := range values {
		if s != "" {
			out = append(out, fhir.Extension{URL: field.URL(), ValueString: s})
		}
	}
	return out
}

func referenceExtensions(field ExtensionField, resourceType string, ids []string) []fhir.Extension {
	out := make([]fhir.Extension, 0, len(ids))
	for _, id := range ids {
		ref := reference(resourceType, id)
		out = append(out, fhir.Extension{URL: field.URL(), ValueReference: &ref})
	}
	return out
}

// extensions returns the extension entries of data carrying the field's URL,
// in document order.
func extensions(data map[string]interface{}, field ExtensionField) []interface{} {
	url := field.URL()
	var out []interface{}
	for _, e := range fhir.GetSlice(data, "extension") {
		if u, _ := fhir.GetString(e, "url"); u == url {
			out = append(out, e)
		}
	}
	return out
}

func extensionCodes(data map[string]interface{}, field ExtensionField) []string {
	var out []string
	for _, e := range extensions(data, field) {
		if code, ok := fhir.GetString(e, "valueCodeableConcept", "coding", 0, "code"); ok {
			out = append(out, code)
		}
	}
	return out
}

func extensionStrings(data map[string]interface{}, field ExtensionField) []string {
	var out []string
	for _, e := range extensions(data, field) {
		if s, ok := fhir.GetString(e, "valueString"); ok {
			out = append(out, s)
		}
	}
	return out
}

func extensionString(data map[string]interface{}, field ExtensionField) string {
	if values := extensionStrings(data, field); len(values) > 0 {
		return values[0]
	}
	return ""
}

func extensionReferenceIDs(data map[string]interface{}, field ExtensionField, resourceType string) []string {
	var out []string
	for _, e := range extensions(data, field) {
		ref, _ := fhir.GetString(e, "valueReference", "reference")
		if id := fhir.ReferenceID(ref, resourceType); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// referenceID extracts the id of the reference stored at path, or "".
func referenceID(data map[string]interface{}, resourceType string, path ...interface{}) string {
	ref, _ := fhir.GetString(data, append(path, "reference")...)
	return fhir.ReferenceID(ref, resourceType)
}

func referenceIDs(data map[string]interface{}, resourceType string, path ...interface{}) []string {
	var out []string
	for _, item := range fhir.GetSlice(data, path...) {
		ref, _ := fhir.GetString(item, "reference")
		if id := fhir.ReferenceID(ref, resourceType); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func requiredString(entity, field string, data map[string]interface{}, path ...interface{}) (string, error) {
	s, _ := fhir.GetString(data, path...)
	if s == "" {
		return "", malformed(entity, field)
	}
	return s, nil
}

func requiredReference(entity, field string, data map[string]interface{}, resourceType string, path ...interface{}) (string, error) {
	id := referenceID(data, resourceType, path...)
	if id == "" {
		return "", malformed(entity, field)
	}
	return id, nil
}

// optionalTime parses the date or dateTime at path. An absent value is not an
// error; a value that is not a FHIR date is.
func optionalTime(entity, field string, data map[string]interface{}, path ...interface{}) (*time.Time, error) {
	v := fhir.Get(data, path...)
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &ValidationError{Entity: entity, Field: field, Value: v, Err: ErrInvalidType}
	}
	for _, layout := range fhirDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, &ValidationError{Entity: entity, Field: field, Value: s, Err: ErrInvalidType}
}

func formatDate(t *time.Time) string {
	return t.Format(dateLayout)
}

func formatDateTime(t *time.Time) string {
	return t.UTC().Format(dateTimeLayout)
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func removeString(in []string, s string) ([]string, int) {
	for i, v := range in {
		if v == s {
			return append(in[:i:i], in[i+1:]...), i
		}
	}
	return in, -1
}

func containsString(in []string, s string) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}

func intPtr(i int) *int { return &i }
