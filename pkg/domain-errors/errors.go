// Package domainerrors defines the error type services return across the
// transport boundary. Stores return sentinel errors; services translate them
// into coded errors carrying the failing entity and the attempted action.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies an error for callers. Codes are stable strings so they can
// be rendered directly in API responses.
type Code string

const (
	CodeValidation        Code = "validation_error"
	CodeInvalidInput      Code = "invalid_input"
	CodeNotFound          Code = "not_found"
	CodeInvalidTransition Code = "invalid_transition"
	CodeConflict          Code = "conflict"
	CodeUnavailable       Code = "storage_unavailable"
	CodeAttachment        Code = "attachment_error"
	CodeTimeout           Code = "timeout"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeInternal          Code = "internal_error"
)

// Error is a coded domain error.
type Error struct {
	Code     Code
	Message  string
	EntityID string
	Action   string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithEntity returns a copy of e that names the failing entity.
func (e *Error) WithEntity(entityID string) *Error {
	cp := *e
	cp.EntityID = entityID
	return &cp
}

// WithAction returns a copy of e that names the attempted action.
func (e *Error) WithAction(action string) *Error {
	cp := *e
	cp.Action = action
	return &cp
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost domain error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status used by handlers.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeAttachment:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
