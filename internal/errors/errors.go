// Package errors defines the domain error taxonomy shared by services and
// handlers. Every enumerated failure carries a stable code so the HTTP layer
// can map it to a specific status instead of a generic 500.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidState        = "INVALID_STATE_TRANSITION"
	CodeDuplicateSignature  = "DUPLICATE_SIGNATURE"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeLedger              = "LEDGER_ERROR"
)

// DomainError is a coded application error.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string { return e.Message }

var (
	ErrDuplicateSignature = &DomainError{
		Code:    CodeDuplicateSignature,
		Message: "user has already signed this operation",
	}
)

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error for the named resource.
func NotFound(resource string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: resource + " not found"}
}

// InvalidState builds an illegal-state-transition error.
func InvalidState(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied builds an authorization error.
func PermissionDenied(message string) *DomainError {
	return &DomainError{Code: CodePermissionDenied, Message: message}
}

// Conflict builds an optimistic-concurrency error surfaced after retries
// are exhausted.
func Conflict(message string) *DomainError {
	return &DomainError{Code: CodeConcurrencyConflict, Message: message}
}

// Ledger wraps a ledger execution failure.
func Ledger(message string) *DomainError {
	return &DomainError{Code: CodeLedger, Message: message}
}

// CodeOf returns the domain code of err, or empty string for plain errors.
func CodeOf(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}
