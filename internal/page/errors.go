// Package page provides the read-only document model the detectors evaluate.
package page

import (
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned when there is no markup to evaluate yet.
var ErrEmptyDocument = errors.New("document is empty")

// HostInitializationError means the document is not ready to be evaluated
// (nothing rendered yet, unparseable markup). Callers retry after a delay.
type HostInitializationError struct {
	URL     string
	Message string
	Cause   error
}

func (e *HostInitializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("host not initialized for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("host not initialized for %s: %s", e.URL, e.Message)
}

func (e *HostInitializationError) Unwrap() error {
	return e.Cause
}

// IsHostInitialization reports whether err is a HostInitializationError.
func IsHostInitialization(err error) bool {
	var hostErr *HostInitializationError
	return errors.As(err, &hostErr)
}
