package fhir

import (
	"net/url"
	"strings"
)

// searchPaths maps the reference search parameters understood by the local
// stores to the element holding the reference.
var searchPaths = map[string]string{
	"subject":         "subject",
	"patient":         "subject",
	"specimen":        "specimen",
	"result":          "result",
	"partof":          "partOf",
	"managing-entity": "managingEntity",
}

// searchTargets gives the default target type for bare-id reference values.
var searchTargets = map[string]string{
	"subject":         "Patient",
	"patient":         "Patient",
	"specimen":        "Specimen",
	"result":          "Observation",
	"partof":          "Organization",
	"managing-entity": "Organization",
}

// IsControlParam reports whether a search parameter steers paging or
// formatting rather than filtering.
func IsControlParam(name string) bool {
	switch name {
	case "_count", "_offset", "_sort", "_total", "_summary", "_elements", "__t", "__page-id":
		return true
	}
	return false
}

// MatchesSearch reports whether a decoded resource satisfies every filtering
// parameter in params. Values of one parameter are OR-ed, parameters are AND-ed,
// and comma-separated values are treated as alternatives. Unknown parameters
// never match.
func MatchesSearch(resource map[string]interface{}, params url.Values) bool {
	for name, values := range params {
		if IsControlParam(name) {
			continue
		}
		matched := false
		for _, raw := range values {
			for _, v := range strings.Split(raw, ",") {
				if matchParam(resource, name, v) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func matchParam(resource map[string]interface{}, name, value string) bool {
	switch name {
	case "_id":
		id, _ := GetString(resource, "id")
		return id == value
	case "_profile":
		for _, p := range GetSlice(resource, "meta", "profile") {
			if s, ok := p.(string); ok && s == value {
				return true
			}
		}
		return false
	case "identifier":
		system, val := "", value
		if i := strings.Index(value, "|"); i >= 0 {
			system, val = value[:i], value[i+1:]
		}
		for _, ident := range GetSlice(resource, "identifier") {
			v, _ := GetString(ident, "value")
			s, _ := GetString(ident, "system")
			if v == val && (system == "" || s == system) {
				return true
			}
		}
		return false
	}

	field, ok := searchPaths[name]
	if !ok {
		return false
	}
	want := value
	if !strings.Contains(want, "/") {
		want = FormatReference(searchTargets[name], want)
	}
	for _, ref := range referencesAt(resource, field) {
		if ref == want {
			return true
		}
	}
	return false
}

// referencesAt collects reference strings from a single Reference or an
// array of References stored under field.
func referencesAt(resource map[string]interface{}, field string) []string {
	var out []string
	switch v := resource[field].(type) {
	case map[string]interface{}:
		if ref, ok := v["reference"].(string); ok {
			out = append(out, ref)
		}
	case []interface{}:
		for _, item := range v {
			if ref, ok := GetString(item, "reference"); ok {
				out = append(out, ref)
			}
		}
	}
	return out
}
