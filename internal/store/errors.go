package store

import "errors"

// Sentinel errors returned by Store implementations. Services map these
// onto domain error codes before they reach callers.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned when a unique constraint is violated.
	ErrAlreadyExists = errors.New("store: already exists")
)
