// Package pdp decides whether a page is a product detail page using a
// required action-button gate and a weighted sum of independent signals.
package pdp

import "fmt"

// SignalEvaluationError reports a signal check that failed or panicked. The
// signal is treated as absent.
type SignalEvaluationError struct {
	Signal string
	Cause  error
}

func (e *SignalEvaluationError) Error() string {
	return fmt.Sprintf("signal %s evaluation failed: %v", e.Signal, e.Cause)
}

func (e *SignalEvaluationError) Unwrap() error {
	return e.Cause
}
