// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across storage/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDecode indicates persisted bytes could not be decoded into a document.
	ErrDecode = errors.New("decode failure")

	// ErrPersistence indicates a durable write did not complete.
	ErrPersistence = errors.New("persistence failure")

	// ErrLockTimeout indicates a resource lock was not acquired within the caller's deadline.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrNoAPIKey indicates neither the user nor the process has a key for the
	// requested provider.
	ErrNoAPIKey = errors.New("api key not configured")

	// ErrValidation indicates a rejected request payload.
	ErrValidation = errors.New("validation")
)
