package domain

import "errors"

var (
	// ErrNotFound: a referenced property or review does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation: caller-supplied input failed a shape/range check.
	// Rejected before any store write.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream: a third-party service returned a non-success response
	// or was unreachable.
	ErrUpstream = errors.New("upstream service failed")
	// ErrUnauthorized / ErrForbidden: upstream auth failures, kept distinct
	// so sync can record them as misses instead of failing the run.
	ErrUnauthorized = errors.New("upstream unauthorized")
	ErrForbidden    = errors.New("upstream forbidden")
)
