// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrNotConfirmed = errors.New("confirmation required")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")

	// Resource errors
	ErrResourceUnavailable = errors.New("resource unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "roster", "identity", "face"
	Op      string // Operation that failed, e.g., "Add", "SignIn"
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

// Is implements errors.Is() matching against both the kind and the cause.
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

// Roster domain errors
var (
	ErrStudentNotFound     = NewDomainError("roster", "Find", ErrNotFound, "student not found")
	ErrInvalidStudentID    = NewDomainError("roster", "Validate", ErrInvalidID, "invalid student ID")
	ErrDeleteNotConfirmed  = NewDomainError("roster", "Delete", ErrNotConfirmed, "delete must be confirmed")
	ErrUnsupportedQuery    = NewDomainError("roster", "Query", ErrInvalidInput, "unsupported query field or operator")
	ErrNoPredictionToSave  = NewDomainError("roster", "SavePrediction", ErrInvalidInput, "no prediction to save")
	ErrRollNumberRequired  = NewDomainError("roster", "SavePrediction", ErrEmptyValue, "roll number is required")
	ErrEmptyImport         = NewDomainError("roster", "Import", ErrEmptyValue, "import file is empty")
	ErrStudentRecordAbsent = NewDomainError("roster", "Resolve", ErrNotFound, "no student record for this session")
)

// Identity domain errors
var (
	ErrProfileNotFound     = NewDomainError("identity", "FindProfile", ErrNotFound, "profile not found")
	ErrEmailTaken          = NewDomainError("identity", "SignUp", ErrAlreadyExists, "email already registered")
	ErrPasswordMismatch    = NewDomainError("identity", "SignUp", ErrValidation, "passwords do not match")
	ErrInvalidCredentials  = NewDomainError("identity", "SignIn", ErrUnauthorized, "invalid email or password")
	ErrSessionExpired      = NewDomainError("identity", "Resolve", ErrUnauthorized, "session expired or revoked")
	ErrInvalidRole         = NewDomainError("identity", "Validate", ErrInvalidInput, "invalid role")
	ErrRoleNotPermitted    = NewDomainError("identity", "Authorize", ErrForbidden, "role is not permitted to perform this action")
	ErrIncompleteProfile   = NewDomainError("identity", "NewSession", ErrInvalidState, "profile is missing required fields")
)

// Face attendance errors
var (
	ErrFaceNotRecognized    = NewDomainError("face", "Verify", ErrNotFound, "face not recognized")
	ErrFaceProfileAbsent    = NewDomainError("face", "Verify", ErrNotFound, "no registered face profile")
	ErrFaceServiceFailed    = NewDomainError("face", "Request", ErrExternalService, "face service request failed")
	ErrFaceServiceDown      = NewDomainError("face", "Request", ErrServiceUnavailable, "face service is unavailable")
	ErrCameraUnavailable    = NewDomainError("face", "Capture", ErrResourceUnavailable, "camera is unavailable")
	ErrInvalidDescriptor    = NewDomainError("face", "Validate", ErrInvalidFormat, "face descriptor must have 128 dimensions")
	ErrRegistrationRejected = NewDomainError("face", "Register", ErrExternalService, "face registration was rejected")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrNotConfirmed)
}

// IsUnauthorized checks if the error means the caller is not authenticated.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden checks if the error means the caller lacks permission.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
