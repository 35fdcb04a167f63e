// Package apperr defines the error kinds shared by the order lifecycle and its transports.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// InvalidArgument is returned when input fails validation (HTTP 400).
	InvalidArgument = errors.New("invalid argument")
	// NotFound indicates that the referenced order does not exist (HTTP 404).
	NotFound = errors.New("not found")
	// Conflict indicates the actor lacks the relationship the transition requires (HTTP 409).
	Conflict = errors.New("conflict")
	// Unauthorized indicates a role mismatch for the requested operation.
	Unauthorized = errors.New("unauthorized")
	// Unauthenticated indicates missing or wrong credentials. Its message is never shown to callers.
	Unauthenticated = errors.New("unauthenticated")
	// Internal covers invariant violations, missing configuration and unexpected faults.
	Internal = errors.New("internal error")
)

// Error carries a kind, an optional offending field and a human-readable message.
type Error struct {
	Kind  error
	Field string
	Msg   string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes the kind so errors.Is(err, apperr.Conflict) works.
func (e *Error) Unwrap() error { return e.Kind }

// New returns an error of the given kind with a formatted message.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Invalid returns an InvalidArgument error naming the offending field.
func Invalid(field, format string, args ...any) error {
	return &Error{Kind: InvalidArgument, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Field returns the offending field recorded on err, if any.
func Field(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// Message returns the caller-facing message for err. Errors that are not *Error
// are unexpected faults and are reported with their own text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
