// Package errors defines the typed error taxonomy shared by every layer of
// the hiring workflow service. Workflow code returns these as values; nothing
// in the service panics or uses errors for control flow.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	ErrCodeValidation        = "validation_failed"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeStaleState        = "stale_state"
	ErrCodeNotFound          = "not_found"
	ErrCodeAlreadyExists     = "already_exists"
	ErrCodeUnavailable       = "store_unavailable"
	ErrCodeInternal          = "internal"
)

// Error is the service-wide error type. Details carries code-specific
// context: missing fields for validation errors, from/event for transition
// errors, expected/actual for stale-state errors.
type Error struct {
	Code    string
	Message string
	Details map[string]string
	Fields  []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error with a code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// ValidationFailed reports that a guard precondition was not met, naming the
// missing or invalid fields.
func ValidationFailed(fields ...string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("missing or invalid fields: %s", strings.Join(fields, ", ")),
		Fields:  fields,
	}
}

// InvalidInput reports a single bad field with an explanation.
func InvalidInput(field, message string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%s: %s", field, message),
		Fields:  []string{field},
	}
}

// InvalidTransition reports an event that is not legal in the current state.
func InvalidTransition(from, event string) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("event %q is not valid in state %q", event, from),
		Details: map[string]string{"from": from, "event": event},
	}
}

// StaleState reports a conditional write whose expected status no longer
// matched the stored document. The caller should reload and retry with fresh
// data, never with the stale payload.
func StaleState(expected, actual string) *Error {
	return &Error{
		Code:    ErrCodeStaleState,
		Message: fmt.Sprintf("expected status %q but document is at %q", expected, actual),
		Details: map[string]string{"expected": expected, "actual": actual},
	}
}

// StaleVersion reports a conditional write that lost to a concurrent update
// of the same document. Same retry contract as StaleState: reload, rebuild,
// retry with fresh data.
func StaleVersion(expected, actual int64) *Error {
	return &Error{
		Code:    ErrCodeStaleState,
		Message: fmt.Sprintf("document version moved from %d to %d during the operation", expected, actual),
		Details: map[string]string{
			"expected_version": fmt.Sprintf("%d", expected),
			"actual_version":   fmt.Sprintf("%d", actual),
		},
	}
}

// NotFound reports a missing document.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

// AlreadyExists reports an insert against an id that is already taken. This
// is a caller conflict, not a server fault, and is never worth retrying
// unchanged.
func AlreadyExists(resource, id string) *Error {
	return &Error{
		Code:    ErrCodeAlreadyExists,
		Message: fmt.Sprintf("%s %q already exists", resource, id),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

// Unavailable reports a failed store call. The operation is safe to retry as
// a whole; no local state was mutated.
func Unavailable(op string, err error) *Error {
	return &Error{
		Code:    ErrCodeUnavailable,
		Message: fmt.Sprintf("store operation %s failed", op),
		cause:   err,
	}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}

// CodeOf returns the error code of err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// FieldsOf returns the missing-field list of a validation error, nil otherwise.
func FieldsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
