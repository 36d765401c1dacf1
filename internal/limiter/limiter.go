// Package limiter implements login rate limiting keyed by account and client IP.
package limiter

import (
	"context"
	"time"
)

// Limiter controls login attempts and temporary lockouts. The username key is
// the login identifier (this application uses the account email).
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}

var _ Limiter = (*Memory)(nil)
