package resource

import "errors"

var (
	// ErrValidation is returned for malformed or out-of-range payloads.
	ErrValidation = errors.New("resource: validation failed")
	// ErrConflict is returned when a unique field already exists.
	ErrConflict = errors.New("resource: conflict")
	// ErrNotFound is returned when no matching record exists.
	ErrNotFound = errors.New("resource: not found")
	// ErrUnauthorized is returned for missing or invalid credentials.
	ErrUnauthorized = errors.New("resource: unauthorized")
	// ErrForbidden is returned for insufficient role.
	ErrForbidden = errors.New("resource: forbidden")
)
