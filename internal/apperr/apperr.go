// Package apperr holds the error kinds the HTTP layer maps to status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error carries a kind, a client-safe message and optional per-field messages.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(ErrConflict, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(ErrForbidden, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newf(ErrUnauthorized, format, args...)
}

// Fields builds a validation error listing the offending fields.
func Fields(message string, fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Message: message, Fields: fields}
}

// Message returns the client-safe message of err, or "" when err is not an
// *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return ""
}
