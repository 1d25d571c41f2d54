package errors

import (
	"fmt"
)

// Wrap adds context to err while keeping its category, so a wrapped NotFound is still a
// NotFound for IsNotFound and for the HTTP mapping. Untyped errors become PermanentError.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}

	switch {
	case IsNotFound(err):
		var nfe *NotFoundError
		if As(err, &nfe) {
			return NewNotFoundWithCause(nfe.resource, nfe.id, err)
		}
	case IsInvalidInput(err):
		var iie *InvalidInputError
		if As(err, &iie) {
			return NewInvalidInputWithCause(iie.field, msg, err)
		}
	case IsConflict(err):
		var ce *ConflictError
		if As(err, &ce) {
			return NewConflictWithCause(ce.resource, msg, err)
		}
	case IsUnauthorized(err):
		return NewUnauthorizedWithCause(msg, err)
	case IsTemporary(err):
		return NewTemporary(msg, err)
	}

	return NewPermanent(msg, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}
