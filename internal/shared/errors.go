package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrIdempotencyKeyRequired indicates a mutating call without a usable key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
)
