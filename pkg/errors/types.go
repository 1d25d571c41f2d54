package errors

import (
	"errors"
)

// As re-exports errors.As so callers need only one errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is re-exports errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New re-exports errors.New for plain sentinel errors.
func New(text string) error {
	return errors.New(text)
}

// IsPermanent reports whether err is or wraps a PermanentError.
func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

// IsTemporary reports whether err is or wraps a TemporaryError.
func IsTemporary(err error) bool {
	var terr *TemporaryError
	return errors.As(err, &terr)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nferr *NotFoundError
	return errors.As(err, &nferr)
}

// IsInvalidInput reports whether err is or wraps an InvalidInputError.
func IsInvalidInput(err error) bool {
	var iierr *InvalidInputError
	return errors.As(err, &iierr)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var cerr *ConflictError
	return errors.As(err, &cerr)
}

// IsUnauthorized reports whether err is or wraps an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var uaerr *UnauthorizedError
	return errors.As(err, &uaerr)
}
