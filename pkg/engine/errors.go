package engine

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrUnknownExpectation indicates an expectation type not present in
	// the expectation table.
	ErrUnknownExpectation = errors.New("unknown expectation type")

	// ErrColumnNotFound indicates a required column absent from the dataset.
	ErrColumnNotFound = errors.New("column not found")
)

// ConfigurationError indicates an invalid expectation request: unknown
// type, missing required column, or malformed keyword arguments. It is
// always raised before any backend call is issued and is never retried.
type ConfigurationError struct {
	ExpectationType string
	Message         string
	Cause           error
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("expectation %s: %s: %v", e.ExpectationType, e.Message, e.Cause)
	}
	return fmt.Sprintf("expectation %s: %s", e.ExpectationType, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// EvaluationError indicates a failure during metric computation: a backend
// error, a type mismatch, or a cancelled context. It is distinct from a
// rule violation; a failed evaluation never reports success.
type EvaluationError struct {
	ExpectationType string
	Metric          string
	Backend         string
	Cause           error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("expectation %s: metric %s failed on backend %s: %v",
		e.ExpectationType, e.Metric, e.Backend, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}
