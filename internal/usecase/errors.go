package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrConflict marks a write rejected because it would violate a
	// uniqueness or state invariant another concurrent writer already
	// satisfied (e.g. a second pending prediction for the same match).
	ErrConflict = errors.New("conflict")

	// ErrDeadlineExceeded marks a write rejected because the relevant
	// betting window has already closed (spec.md §4.1/§4.2).
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)
