package errors

import (
	"github.com/pkg/errors"
)

// Common error types for the ordering server
var (
	// Validation errors
	ErrMissingField = errors.New("missing required field")
	ErrInvalidInput = errors.New("invalid input")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid identifier or password")
	ErrUnauthorized       = errors.New("unauthorized")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Store errors
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Wrapf annotates err with a message and a stack trace. It returns nil for a nil err.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
