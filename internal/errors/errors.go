package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("resource conflict")
	ErrUnknownSizeCategory = errors.New("unknown hotel size category")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrTimeout             = errors.New("operation timeout")
)

// ValidationError represents a malformed-input failure on a single field.
// It is surfaced to the immediate caller and never propagated past a
// per-item processing boundary.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error `json:"errors"`
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Add adds an error to the MultiError
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// RepositoryError represents a persistence-layer error
type RepositoryError struct {
	Operation string
	Err       error
}

func (e RepositoryError) Error() string {
	return fmt.Sprintf("repository error during %s: %v", e.Operation, e.Err)
}

func (e RepositoryError) Unwrap() error {
	return e.Err
}

// ClusterError marks a failure while processing one disruption cluster.
// The orchestrator logs these and moves on to the next cluster.
type ClusterError struct {
	City     string
	MainType string
	Stage    string
	Err      error
}

func (e ClusterError) Error() string {
	return fmt.Sprintf("cluster %s/%s failed at stage %s: %v", e.City, e.MainType, e.Stage, e.Err)
}

func (e ClusterError) Unwrap() error {
	return e.Err
}
