// Package apperr defines the error taxonomy shared by every core component.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary mapping (HTTP status, retry policy).
type Kind string

const (
	// KindNotFound means the entity is missing or not owned by the asserting tenant.
	KindNotFound Kind = "not_found"
	// KindInvalidInput means the request payload failed validation.
	KindInvalidInput Kind = "invalid_input"
	// KindForbidden means the caller's role cannot perform the mutation.
	KindForbidden Kind = "forbidden"
	// KindConflict means a uniqueness invariant would be violated.
	KindConflict Kind = "conflict"
	// KindNoThresholds means no unit/rule combination supplies both temperature bounds.
	KindNoThresholds Kind = "no_thresholds"
	// KindTransient means a retryable infrastructure failure occurred.
	KindTransient Kind = "transient"
	// KindFatal means the process cannot continue serving requests.
	KindFatal Kind = "fatal"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a classified error without a wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NotFound is a convenience constructor for the common "silent filter" case.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// InvalidInput is a convenience constructor carrying field-level details.
func InvalidInput(message string, details any) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Details: details}
}

// NoThresholds is a convenience constructor for threshold resolution failure.
func NoThresholds(message string) *Error { return New(KindNoThresholds, message) }

// Conflict is a convenience constructor for uniqueness violations.
func Conflict(message string) *Error { return New(KindConflict, message) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
