// Package shared contains common domain types and errors used across all
// domain packages. Its only external dependency is shopspring/decimal, used
// for score rounding in the value objects.
package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")

	// Output errors
	ErrExport = errors.New("export failed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "dataset", "grading", "session"
	Op      string // Operation that failed, e.g., "Validate", "Export"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DATASET ERRORS
// Input errors are fatal to a load. Each carries the column and row so the
// caller can point the user at the offending cell.
// ══════════════════════════════════════════════════════════════════════════════

// MissingColumnsError is returned when required columns are absent from the header.
type MissingColumnsError struct {
	Names []string
}

func (e *MissingColumnsError) Error() string {
	return "dataset.Validate: missing required columns: " + strings.Join(e.Names, ", ")
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrValidation || target == ErrInvalidInput
}

// NonNumericFieldError is returned for the first numeric cell that cannot be parsed.
// Row is the 1-based data row index (header excluded).
type NonNumericFieldError struct {
	Field string
	Row   int
	Value string
}

func (e *NonNumericFieldError) Error() string {
	return fmt.Sprintf("dataset.Validate: field %q in row %d is not numeric: %q", e.Field, e.Row, e.Value)
}

func (e *NonNumericFieldError) Is(target error) bool {
	return target == ErrValidation || target == ErrInvalidFormat
}

// MissingValueError is returned when a required text cell is empty.
type MissingValueError struct {
	Field string
	Row   int
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("dataset.Validate: field %q in row %d is empty", e.Field, e.Row)
}

func (e *MissingValueError) Is(target error) bool {
	return target == ErrValidation || target == ErrEmptyValue
}

// UnresolvedLevelError is returned when a record's level tag is not recognised
// and the session has no concrete level to fall back to.
type UnresolvedLevelError struct {
	Row int
	Tag string
}

func (e *UnresolvedLevelError) Error() string {
	return fmt.Sprintf("dataset.Validate: level %q in row %d is not recognised and the session level is mixed", e.Tag, e.Row)
}

func (e *UnresolvedLevelError) Is(target error) bool {
	return target == ErrValidation || target == ErrInvalidInput
}

// Grading errors
var (
	ErrInvalidScale      = NewDomainError("grading", "NewScale", ErrInvalidInput, "classification scale is invalid")
	ErrInvalidThresholds = NewDomainError("grading", "Validate", ErrValueOutOfRange, "thresholds are out of range")
	ErrEmptyDataset      = NewDomainError("dataset", "Load", ErrEmptyValue, "dataset has no rows")
	ErrUnsupportedFormat = NewDomainError("dataset", "Load", ErrInvalidFormat, "unsupported file format")
)

// Session errors
var (
	ErrSessionNotFound = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrNoDataset       = NewDomainError("session", "Dataset", ErrInvalidState, "session has no dataset loaded")
	ErrStudentNotFound = NewDomainError("session", "FindStudent", ErrNotFound, "student not found in dataset")
	ErrFeatureDisabled = NewDomainError("session", "Feature", ErrInvalidState, "feature is disabled")
)

// External service errors
var (
	ErrProviderUnavailable = NewDomainError("feedback", "Request", ErrServiceUnavailable, "feedback provider is unavailable")
	ErrProviderTimeout     = NewDomainError("feedback", "Request", ErrTimeout, "feedback provider timed out")
	ErrProviderEmpty       = NewDomainError("feedback", "Parse", ErrInvalidFormat, "feedback provider returned no text")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
