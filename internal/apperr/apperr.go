// Package apperr defines the service-wide error taxonomy (§7) and its
// mapping to HTTP status codes. Every service-layer function that can
// fail in a way the API surface must distinguish returns (or wraps) an
// *Error, so cmd/server can translate failures into the response
// envelope with a single switch.
package apperr

import (
	"errors"
	"net/http"
)

// Kind names one of the seven error categories the API surface
// distinguishes in its response mapping.
type Kind string

const (
	Validation      Kind = "validation"
	Authentication  Kind = "authentication"
	Authorization   Kind = "authorization"
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	PayloadTooLarge Kind = "payload_too_large"
	UpstreamFailure Kind = "upstream_failure"
	Internal        Kind = "internal"
)

// Error is the uniform service-layer error type. Details carries
// structured context (e.g. the offending field) for the response
// envelope's optional details object.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return e.Message }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with structured details attached.
func Newf(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Validationf is shorthand for New(Validation, ...).
func Validationf(message string) *Error { return New(Validation, message) }

// NotFoundf is shorthand for New(NotFound, ...).
func NotFoundf(message string) *Error { return New(NotFound, message) }

// StatusCode maps a Kind to the HTTP status the API surface returns.
func StatusCode(k Kind) int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusBadRequest
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case UpstreamFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err, returning (nil, false) if err is not
// or does not wrap one.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
