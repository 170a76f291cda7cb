package miabis

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidType         = errors.New("invalid type")
	ErrValueNotAllowed     = errors.New("value not allowed")
	ErrRequiredField       = errors.New("required field is empty")
	ErrMalformedInput      = errors.New("malformed input")
	ErrMissingReference    = errors.New("missing reference")
	ErrNonexistentResource = errors.New("nonexistent resource")
	ErrConflict            = errors.New("conflict")
)

// ValidationError is returned by constructors and setters when a value has
// the wrong kind or falls outside the vocabulary of its field.
type ValidationError struct {
	Entity string
	Field  string
	Value  interface{}
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %v: %v", e.Entity, e.Field, e.Err, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MalformedInputError is returned when a FHIR resource lacks a field the
// entity requires.
type MalformedInputError struct {
	Entity string
	Field  string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s resource: missing %s", e.Entity, e.Field)
}

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

// MissingReferenceError is returned by ToFHIR when a referenced resource's
// FHIR id was neither passed in nor cached on the entity.
type MissingReferenceError struct {
	Entity    string
	Reference string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("%s: FHIR id of %s is not known", e.Entity, e.Reference)
}

func (e *MissingReferenceError) Is(target error) bool { return target == ErrMissingReference }

// NonexistentResourceError reports that an operation needed a resource the
// store does not hold.
type NonexistentResourceError struct {
	ResourceType string
	ID           string
	Err          error
}

func (e *NonexistentResourceError) Error() string {
	return fmt.Sprintf("%s %q does not exist in the store", e.ResourceType, e.ID)
}

func (e *NonexistentResourceError) Is(target error) bool { return target == ErrNonexistentResource }

func (e *NonexistentResourceError) Unwrap() error { return e.Err }

// ConflictError is returned when storing a resource would break a
// cardinality rule of the graph, such as a second Condition for a donor.
type ConflictError struct {
	ResourceType string
	ExistingID   string
	Reason       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s (existing %s/%s)", e.ResourceType, e.Reason, e.ResourceType, e.ExistingID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func required(entity, field, value string) error {
	if value == "" {
		return &ValidationError{Entity: entity, Field: field, Value: value, Err: ErrRequiredField}
	}
	return nil
}

func malformed(entity, field string) error {
	return &MalformedInputError{Entity: entity, Field: field}
}

func missingRef(entity, reference string) error {
	return &MissingReferenceError{Entity: entity, Reference: reference}
}
