package superadmin

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized covers missing, invalid, and expired sessions. "Not
	// found" and "expired" are deliberately indistinguishable to callers.
	ErrUnauthorized = errors.New("superadmin: unauthorized")

	// ErrInvalidCredentials is the single login failure shape for unknown
	// email, inactive account, wrong password, and IP allow-list mismatch,
	// so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("superadmin: invalid credentials")

	// ErrStoreUnavailable propagates a dependency failure on a path that
	// backs a security decision. Never downgraded to allow.
	ErrStoreUnavailable = errors.New("superadmin: store unavailable")

	// ErrNotFound is an internal store sentinel.
	ErrNotFound = errors.New("superadmin: not found")

	// ErrConflict marks a duplicate email on account creation.
	ErrConflict = errors.New("superadmin: conflict")
)

// RateLimitedError carries the retry-after hint for an active lockout.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("superadmin: rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// IsRateLimited reports whether err is a lockout and returns the hint.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
