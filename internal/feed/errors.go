package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrViewerNotFound is returned when the requesting viewer has no account.
	ErrViewerNotFound = errors.New("viewer not found")

	// ErrCandidateFetch is returned when candidate listings cannot be loaded.
	ErrCandidateFetch = errors.New("candidate fetch failed")
)

// ValidationError reports an invalid query parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
