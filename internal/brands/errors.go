// Package brands holds the static registry of supported brands and the
// normalization used to match page text against it.
package brands

import "fmt"

// RegistryLoadError represents a brand-list payload that could not be turned
// into a registry (unreadable, malformed, or empty).
type RegistryLoadError struct {
	Message string
	Cause   error
}

func (e *RegistryLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("registry load error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("registry load error: %s", e.Message)
}

func (e *RegistryLoadError) Unwrap() error {
	return e.Cause
}
