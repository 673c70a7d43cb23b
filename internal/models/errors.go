package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes shared by services and handlers.
var (
	ErrValidation     = errors.New("validation failed")
	ErrInvalidPolygon = errors.New("invalid polygon")
	ErrNotFound       = errors.New("not found")
	ErrNotAConflict   = errors.New("sync log entry is not an open conflict")
	ErrBatchTooLarge  = errors.New("batch exceeds maximum size")
	ErrInfrastructure = errors.New("storage unavailable")
	ErrStaleWrite     = errors.New("row changed since it was read")
)

// FieldIssue describes one invalid input field.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldIssue) String() string {
	return f.Field + ": " + f.Message
}

// ValidationError carries field-level detail for a rejected request or sync item.
// It matches ErrValidation, and ErrInvalidPolygon as well when Polygon is set.
type ValidationError struct {
	Issues  []FieldIssue
	Polygon bool
}

// NewValidationError builds a single-issue validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Issues: []FieldIssue{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	prefix := ErrValidation.Error()
	if e.Polygon {
		prefix = ErrInvalidPolygon.Error()
	}
	if len(e.Issues) == 0 {
		return prefix
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	return e.Polygon && target == ErrInvalidPolygon
}

// Add appends an issue.
func (e *ValidationError) Add(field, message string) {
	e.Issues = append(e.Issues, FieldIssue{Field: field, Message: message})
}

// HasIssues reports whether any issue was recorded.
func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// Prefix rewrites every field name under a parent path, e.g. "data".
func (e *ValidationError) Prefix(parent string) *ValidationError {
	for i := range e.Issues {
		e.Issues[i].Field = parent + "." + e.Issues[i].Field
	}
	return e
}

// InfrastructureError wraps a storage failure. It aborts the whole sync batch
// and is safe for the caller to retry.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() []error {
	return []error{ErrInfrastructure, e.Err}
}

// Infra wraps err as an InfrastructureError unless it is nil or already one.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *InfrastructureError
	if errors.As(err, &ie) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}
