package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable is returned when the row-set provider cannot be
	// reached. Fatal for the request; never degraded to partial output.
	ErrUnavailable = errors.New("row-set provider unavailable")
)
