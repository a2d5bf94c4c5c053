// Package apperror defines the domain errors shared by every layer.
//
// Repositories and services return these; only the HTTP handlers know how
// they map to status codes.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. An *AppError unwraps to exactly one of them.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// AppError carries a message that is safe to show to the user.
type AppError struct {
	Err     error
	Message string
	// Field names the offending form field for validation errors.
	Field string
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Err }

func newError(kind error, field, message string) *AppError {
	return &AppError{Err: kind, Message: message, Field: field}
}

// NotFound reports that the resource identified by key (an ID, slug or
// username) does not exist.
func NotFound(resource, key string) *AppError {
	return newError(ErrNotFound, "", fmt.Sprintf("%s %q not found", resource, key))
}

func ValidationFailed(field, message string) *AppError {
	return newError(ErrValidation, field, message)
}

// Conflict reports a uniqueness violation on key.
func Conflict(resource, key string) *AppError {
	return newError(ErrConflict, "", fmt.Sprintf("%s %q already exists", resource, key))
}

// Forbidden is for a signed-in caller acting on something they do not own.
func Forbidden(message string) *AppError {
	return newError(ErrForbidden, "", message)
}

// Unauthorized is for requests that need a signed-in user, and for failed
// logins.
func Unauthorized(message string) *AppError {
	return newError(ErrUnauthorized, "", message)
}
