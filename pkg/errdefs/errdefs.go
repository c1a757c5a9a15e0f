// Package errdefs defines the stable error taxonomy shared by the HTTP
// gateway and the websocket channel. Handlers return or wrap these errors
// and let a single terminal converter per transport produce the framing:
// an HTTP status plus JSON body, or a channel ack envelope.
package errdefs

import (
	"errors"
	"net/http"

	"github.com/marmos91/syncbox/pkg/models"
)

// Code is a stable, client-visible error code.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error is a typed error carrying a taxonomy code and a client-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error // wrapped cause, never shown to clients
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

// New creates a typed error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a typed error wrapping a cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation is shorthand for a VALIDATION_ERROR.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Forbidden is shorthand for a FORBIDDEN error.
func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

// Unauthorized is shorthand for an UNAUTHORIZED error.
func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

// FromError classifies an arbitrary error into the taxonomy. Typed errors
// pass through; known domain sentinels map to their codes; anything else
// is INTERNAL_ERROR with a generic message so internals never leak.
func FromError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	switch {
	case errors.Is(err, models.ErrFileNotFound),
		errors.Is(err, models.ErrStoreNotFound),
		errors.Is(err, models.ErrAPIKeyNotFound):
		return Wrap(CodeNotFound, "resource not found", err)
	case errors.Is(err, models.ErrFileExists),
		errors.Is(err, models.ErrDuplicateStore):
		return Wrap(CodeConflict, "resource already exists", err)
	case errors.Is(err, models.ErrPathInvalid),
		errors.Is(err, models.ErrContentTooBig):
		return Wrap(CodeValidation, err.Error(), err)
	case errors.Is(err, models.ErrAPIKeyRevoked):
		// Surfaced as a generic auth failure for uniformity.
		return Wrap(CodeUnauthorized, "invalid API key", err)
	default:
		return Wrap(CodeInternal, "internal server error", err)
	}
}

// HTTPStatus maps a code to its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
