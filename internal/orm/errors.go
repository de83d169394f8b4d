package orm

import (
	"errors"
	"fmt"
)

// RuntimeError represents an operation attempted against an unready
// system or a backend call that failed unexpectedly.
//
// Validation failures are never RuntimeErrors: they are returned as
// schema.Violations. Refused writes are reported as false, not as errors.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Collection names the affected collection, when known.
	Collection string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNotAttached indicates the schema has no collection on this DB.
	ErrCodeNotAttached RuntimeErrorCode = "NOT_ATTACHED"

	// ErrCodeNoBackend indicates the DB was created without a backend.
	ErrCodeNoBackend RuntimeErrorCode = "NO_BACKEND"

	// ErrCodeBackendFailure indicates the backend call itself failed.
	ErrCodeBackendFailure RuntimeErrorCode = "BACKEND_FAILURE"

	// ErrCodeInvalidQuery indicates a malformed filter or field path.
	ErrCodeInvalidQuery RuntimeErrorCode = "INVALID_QUERY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Collection != "" {
		msg += fmt.Sprintf(" (collection=%s)", e.Collection)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// HasCode reports whether err is a RuntimeError with code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func backendFailure(collection, op string, err error) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeBackendFailure,
		Message:    op + " failed",
		Collection: collection,
		Err:        err,
	}
}

func invalidQuery(collection string, err error) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeInvalidQuery,
		Message:    "invalid query",
		Collection: collection,
		Err:        err,
	}
}
