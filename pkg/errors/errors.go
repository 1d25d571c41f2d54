// Package errors provides the error taxonomy shared by the lovetree store, cache and API layers.
//
// Store implementations return these types and the cache-aside repository passes them through
// untouched, so callers see the same error whether or not caching is enabled.
//
// Example usage:
//
//	tree, err := repo.GetLoveTree(ctx, treeID)
//	if errors.IsNotFound(err) {
//	    // 404
//	}
//
//	if err := pool.Ping(ctx); err != nil {
//	    return errors.NewTemporary("database unreachable", err)
//	}
package errors

import (
	"fmt"
)

// PermanentError is a failure that will not go away on retry, such as corrupt data or a
// programming error.
type PermanentError struct {
	msg   string
	cause error
}

// NewPermanent creates a permanent error with an optional cause.
func NewPermanent(msg string, cause error) error {
	return &PermanentError{msg: msg, cause: cause}
}

func (e *PermanentError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *PermanentError) Unwrap() error {
	return e.cause
}

// TemporaryError is a failure that may succeed on retry: a dropped connection, a timeout,
// an overloaded dependency.
type TemporaryError struct {
	msg   string
	cause error
}

// NewTemporary creates a temporary error with an optional cause.
func NewTemporary(msg string, cause error) error {
	return &TemporaryError{msg: msg, cause: cause}
}

func (e *TemporaryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *TemporaryError) Unwrap() error {
	return e.cause
}

// NotFoundError reports a missing entity (user, love tree, item, ...).
type NotFoundError struct {
	resource string
	id       string
	cause    error
}

// NewNotFound creates a not found error for the given resource and identifier.
func NewNotFound(resource, id string) error {
	return &NotFoundError{resource: resource, id: id}
}

// NewNotFoundWithCause creates a not found error carrying the underlying driver error.
func NewNotFoundWithCause(resource, id string, cause error) error {
	return &NotFoundError{resource: resource, id: id, cause: cause}
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s not found: %s (%v)", e.resource, e.id, e.cause)
	}
	return fmt.Sprintf("%s not found: %s", e.resource, e.id)
}

func (e *NotFoundError) Unwrap() error {
	return e.cause
}

// Resource returns the kind of entity that was not found.
func (e *NotFoundError) Resource() string {
	return e.resource
}

// ID returns the identifier that was looked up.
func (e *NotFoundError) ID() string {
	return e.id
}

// InvalidInputError reports a rejected argument or request field.
type InvalidInputError struct {
	field string
	msg   string
	cause error
}

// NewInvalidInput creates an invalid input error for a field.
func NewInvalidInput(field, msg string) error {
	return &InvalidInputError{field: field, msg: msg}
}

// NewInvalidInputWithCause creates an invalid input error with an underlying cause.
func NewInvalidInputWithCause(field, msg string, cause error) error {
	return &InvalidInputError{field: field, msg: msg, cause: cause}
}

func (e *InvalidInputError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid input for %s: %s (%v)", e.field, e.msg, e.cause)
	}
	return fmt.Sprintf("invalid input for %s: %s", e.field, e.msg)
}

func (e *InvalidInputError) Unwrap() error {
	return e.cause
}

// Field returns the offending field name.
func (e *InvalidInputError) Field() string {
	return e.field
}

// Message returns the validation message.
func (e *InvalidInputError) Message() string {
	return e.msg
}

// ConflictError reports a write that collides with existing state, e.g. a username that is
// already taken.
type ConflictError struct {
	resource string
	msg      string
	cause    error
}

// NewConflict creates a conflict error for the given resource.
func NewConflict(resource, msg string) error {
	return &ConflictError{resource: resource, msg: msg}
}

// NewConflictWithCause creates a conflict error with an underlying cause.
func NewConflictWithCause(resource, msg string, cause error) error {
	return &ConflictError{resource: resource, msg: msg, cause: cause}
}

func (e *ConflictError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s conflict: %s (%v)", e.resource, e.msg, e.cause)
	}
	return fmt.Sprintf("%s conflict: %s", e.resource, e.msg)
}

func (e *ConflictError) Unwrap() error {
	return e.cause
}

// Resource returns the kind of entity involved in the conflict.
func (e *ConflictError) Resource() string {
	return e.resource
}

// UnauthorizedError reports a caller that is not allowed to perform the operation.
type UnauthorizedError struct {
	msg   string
	cause error
}

// NewUnauthorized creates an unauthorized error.
func NewUnauthorized(msg string) error {
	return &UnauthorizedError{msg: msg}
}

// NewUnauthorizedWithCause creates an unauthorized error with an underlying cause.
func NewUnauthorizedWithCause(msg string, cause error) error {
	return &UnauthorizedError{msg: msg, cause: cause}
}

func (e *UnauthorizedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("unauthorized: %s (%v)", e.msg, e.cause)
	}
	return fmt.Sprintf("unauthorized: %s", e.msg)
}

func (e *UnauthorizedError) Unwrap() error {
	return e.cause
}
