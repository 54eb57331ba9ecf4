package ingest

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation error")

// ValidationError describes a candidate row that must not be submitted.
type ValidationError struct {
	RefDes   string
	FileMask string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.RefDes == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s for %s (%s): %s", e.Field, e.RefDes, e.FileMask, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
