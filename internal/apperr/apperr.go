// Package apperr defines the error kinds surfaced by services. Handlers map a
// Kind to an HTTP status in one place, so every operation either returns its
// payload or an *Error carrying a kind and a human readable message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. The string value is sent to clients in the
// "error" field of the JSON body.
type Kind string

const (
	Unauthorized      Kind = "unauthorized"
	InvalidToken      Kind = "invalid_token"
	Forbidden         Kind = "forbidden"
	NotFound          Kind = "not_found"
	Validation        Kind = "validation_error"
	Conflict          Kind = "conflict"
	PaymentProcessing Kind = "payment_processing_error"
	Store             Kind = "store_error"
)

// Error is the error type returned by services.
type Error struct {
	Kind    Kind
	Message string
	Err     error // proximate cause, never sent to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error without a cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an *Error that keeps err as its cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are treated as
// store failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Store
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case Unauthorized, InvalidToken:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
