package errors

import (
	"errors"
	"fmt"
	"strings"
)

// The error taxonomy for the core. Every failure a service returns is one
// of these types so callers (and the HTTP mapper) can react precisely
// instead of pattern-matching strings.

// ValidationError aggregates one or more malformed-input messages. They
// are reported to the caller verbatim.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Validation builds a ValidationError from the collected messages.
func Validation(messages ...string) error {
	return &ValidationError{Messages: messages}
}

// ConflictError marks a duplicate like/block/match. Treated as a benign
// no-op by the services, not surfaced as a failure.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func Conflict(msg string) error { return &ConflictError{Msg: msg} }

// AuthzReason distinguishes why a guarded operation was refused.
type AuthzReason string

const (
	ReasonNotMatched AuthzReason = "not_matched"
	ReasonBlocked    AuthzReason = "blocked"
	ReasonForbidden  AuthzReason = "forbidden"
)

// AuthorizationError is returned when relationship state forbids an
// operation, e.g. messaging without a match or with an active block.
// Reason lets the UI show the right message.
type AuthorizationError struct {
	Reason AuthzReason
	Msg    string
}

func (e *AuthorizationError) Error() string { return e.Msg }

func NotMatched() error {
	return &AuthorizationError{Reason: ReasonNotMatched, Msg: "users are not matched"}
}

func Blocked() error {
	return &AuthorizationError{Reason: ReasonBlocked, Msg: "a block exists between the users"}
}

func Forbidden(msg string) error {
	return &AuthorizationError{Reason: ReasonForbidden, Msg: msg}
}

// NotFoundError covers nonexistent users and invalid-or-expired tokens.
// Token expiry and token reuse share the same message on purpose: the
// caller must not learn which case applied.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NotFound(msg string) error { return &NotFoundError{Msg: msg} }

// TransientStoreError wraps a storage failure the caller may retry. The
// transactional boundaries guarantee no partial effects persisted.
type TransientStoreError struct {
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store failure: %v", e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// Store wraps err as a TransientStoreError, passing nil through.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return &TransientStoreError{Err: err}
}

// Is-style helpers used at call sites and in tests.

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// AsAuthorization returns the AuthorizationError if err is one.
func AsAuthorization(err error) (*AuthorizationError, bool) {
	var e *AuthorizationError
	ok := errors.As(err, &e)
	return e, ok
}
