package marketplace

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to HTTP status codes and the "code"
// field of error bodies, so callers never have to match on message text.
var (
	ErrNotFound   = errors.New("not_found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation")
)

// Error carries a kind and a message safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Code is the machine-readable form of the kind.
func (e *Error) Code() string { return e.Kind.Error() }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func invalid(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

// Returned by Store implementations when a record is missing.
var (
	ErrJobNotFound  = &Error{Kind: ErrNotFound, Message: "Job not found"}
	ErrBidNotFound  = &Error{Kind: ErrNotFound, Message: "Bid not found"}
	ErrUserNotFound = &Error{Kind: ErrNotFound, Message: "User not found"}
)

const msgWorkerAlreadyAssigned = "Worker is already assigned to this job"

// NewError builds an *Error of the given kind. Used by the HTTP layer to
// report bind and validation failures in the same shape as service errors.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}
