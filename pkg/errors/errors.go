package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones of a sentinel still compare.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Error taxonomy shared by the enrollment engine.
var (
	ErrValidation     = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrNotFound       = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict       = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInvalidState   = New("INVALID_STATE", http.StatusUnprocessableEntity, "invalid state transition")
	ErrInfrastructure = New("INFRASTRUCTURE_ERROR", http.StatusServiceUnavailable, "data store unavailable")

	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrLockHeld  = New("LOCK_HELD", http.StatusConflict, "lock already held")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails clones err and attaches machine-readable details.
func WithDetails(err *Error, message string, details interface{}) *Error {
	clone := Clone(err, message)
	if clone != nil {
		clone.Details = details
	}
	return clone
}

// Infrastructure wraps a data-store failure.
func Infrastructure(err error, message string) *Error {
	return Wrap(err, ErrInfrastructure.Code, ErrInfrastructure.Status, message)
}

// IsInfrastructure reports whether err represents a data-store or internal fault.
func IsInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	code := FromError(err).Code
	return code == ErrInfrastructure.Code || code == ErrInternal.Code
}

// IsDomain reports whether err is a user-facing domain rejection.
func IsDomain(err error) bool {
	if err == nil {
		return false
	}
	switch FromError(err).Code {
	case ErrValidation.Code, ErrNotFound.Code, ErrConflict.Code, ErrInvalidState.Code, ErrForbidden.Code, ErrUnauthorized.Code:
		return true
	default:
		return false
	}
}

// HasCode reports whether err carries the provided code.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return FromError(err).Code == code
}
