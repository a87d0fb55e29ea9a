// Package server provides the HTTP API the browser extension's background
// process talks to.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/cashback-scout/internal/fetch"
	"github.com/jonathan/cashback-scout/internal/page"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrUnauthorized indicates a missing or rejected client token
type ErrUnauthorized struct {
	Reason string
	Cause  error
}

func (e *ErrUnauthorized) Error() string {
	return "unauthorized: " + e.Reason
}

func (e *ErrUnauthorized) Unwrap() error {
	return e.Cause
}

// ErrNotFound indicates the requested resource does not exist
type ErrNotFound struct {
	Resource string
	Key      string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// ErrUnavailable indicates an optional backend is not configured
type ErrUnavailable struct {
	Feature string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s is not enabled on this server", e.Feature)
}

// ErrRateLimited indicates the client exhausted its token bucket
type ErrRateLimited struct{}

func (e *ErrRateLimited) Error() string {
	return "rate limit exceeded"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation   *ErrValidation
		unauthorized *ErrUnauthorized
		notFound     *ErrNotFound
		unavailable  *ErrUnavailable
		limited      *ErrRateLimited
		fetchErr     *fetch.Error
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	case page.IsHostInitialization(err), errors.As(err, &fetchErr):
		// the page itself could not be loaded
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
