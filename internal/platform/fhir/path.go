package fhir

import (
	"encoding/json"
	"fmt"
)

// Get walks a decoded JSON document along path. String segments index objects
// and int segments index arrays. A missing segment, an out-of-range index or a
// value of the wrong shape yields nil instead of a panic.
func Get(data interface{}, path ...interface{}) interface{} {
	cur := data
	for _, seg := range path {
		if cur == nil {
			return nil
		}
		switch s := seg.(type) {
		case string:
			switch node := cur.(type) {
			case map[string]interface{}:
				cur = node[s]
			default:
				return nil
			}
		case int:
			switch node := cur.(type) {
			case []interface{}:
				if s < 0 || s >= len(node) {
					return nil
				}
				cur = node[s]
			case []map[string]interface{}:
				if s < 0 || s >= len(node) {
					return nil
				}
				cur = node[s]
			default:
				return nil
			}
		default:
			return nil
		}
	}
	return cur
}

// GetString returns the string at path.
func GetString(data interface{}, path ...interface{}) (string, bool) {
	s, ok := Get(data, path...).(string)
	return s, ok
}

// GetNumber returns the JSON number at path.
func GetNumber(data interface{}, path ...interface{}) (float64, bool) {
	switch v := Get(data, path...).(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// GetSlice returns the array at path, or nil.
func GetSlice(data interface{}, path ...interface{}) []interface{} {
	switch v := Get(data, path...).(type) {
	case []interface{}:
		return v
	case []map[string]interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	}
	return nil
}

// GetMap returns the object at path, or nil.
func GetMap(data interface{}, path ...interface{}) map[string]interface{} {
	m, _ := Get(data, path...).(map[string]interface{})
	return m
}

// ToGeneric converts a resource built from typed values into the plain
// map/slice form produced by decoding JSON.
func ToGeneric(resource interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	return m, nil
}
