package fhir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResourceNotFound is reported by resource stores when a read, update or
// delete targets a resource that does not exist.
var ErrResourceNotFound = errors.New("fhir resource not found")

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// ParseReference splits a relative reference of the form "Type/id". Absolute
// URLs are accepted; only the last two path segments are used.
func ParseReference(ref string) (resourceType, id string, ok bool) {
	ref = strings.TrimSuffix(ref, "/")
	if i := strings.Index(ref, "/_history/"); i >= 0 {
		ref = ref[:i]
	}
	parts := strings.Split(ref, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	resourceType, id = parts[len(parts)-2], parts[len(parts)-1]
	if resourceType == "" || id == "" {
		return "", "", false
	}
	return resourceType, id, true
}

// ReferenceID strips the "<resourceType>/" prefix from ref. It returns "" when
// the reference points at a different resource type or is malformed.
func ReferenceID(ref, resourceType string) string {
	rt, id, ok := ParseReference(ref)
	if !ok || rt != resourceType {
		return ""
	}
	return id
}
