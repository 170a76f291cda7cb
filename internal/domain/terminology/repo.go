package terminology

import (
	"context"
	"errors"
)

// ErrCodeNotFound is returned by an ICD10Repository when the code table has
// no entry for the requested code.
var ErrCodeNotFound = errors.New("icd-10 code not found")

// ICD10Repository provides access to WHO ICD-10 reference codes.
type ICD10Repository interface {
	Search(ctx context.Context, query string, limit int) ([]*ICD10Code, error)
	GetByCode(ctx context.Context, code string) (*ICD10Code, error)
}
