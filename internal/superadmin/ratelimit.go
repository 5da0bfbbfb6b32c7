package superadmin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stratix.org/internal/obs"
)

const (
	defaultMaxFailures   = 5
	defaultFailureWindow = 15 * time.Minute
	defaultLockoutPeriod = 15 * time.Minute
)

// Limiter tracks consecutive authentication failures per key and locks the
// key out after the threshold. Identity and source IP are tracked as
// separate keys so rotating one does not bypass the other. Lockout duration
// is fixed; failures during an active lockout do not extend it.
type Limiter struct {
	store   AttemptStore
	max     int
	window  time.Duration
	lockout time.Duration
	now     func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithLimiterClock overrides the time source, for tests.
func WithLimiterClock(fn func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithThreshold overrides failure count, window, and lockout duration.
func WithThreshold(max int, window, lockout time.Duration) LimiterOption {
	return func(l *Limiter) {
		if max > 0 {
			l.max = max
		}
		if window > 0 {
			l.window = window
		}
		if lockout > 0 {
			l.lockout = lockout
		}
	}
}

// NewLimiter constructs a Limiter over store.
func NewLimiter(store AttemptStore, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:   store,
		max:     defaultMaxFailures,
		window:  defaultFailureWindow,
		lockout: defaultLockoutPeriod,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IPKey namespaces an address so it cannot collide with an email key.
func IPKey(ip string) string { return "ip:" + ip }

// RecordFailure increments the counter for key and returns the new count.
// Crossing the threshold within the window starts the lockout.
func (l *Limiter) RecordFailure(ctx context.Context, key string) (int, error) {
	now := l.now()
	c, err := l.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		c = Counter{Key: key}
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if now.Before(c.LockedUntil) {
		// Already locked; the count is frozen so lockouts never compound.
		return c.Count, nil
	}
	if now.After(c.WindowExpires) {
		c.Count = 0
	}

	c.Count++
	c.WindowExpires = now.Add(l.window)
	if c.Count >= l.max {
		c.LockedUntil = now.Add(l.lockout)
		obs.ObserveLockout()
	}
	if err := l.store.Put(ctx, c); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return c.Count, nil
}

// IsLocked reports whether key is under an active lockout and how long
// remains, the retry-after hint surfaced to callers.
func (l *Limiter) IsLocked(ctx context.Context, key string) (bool, time.Duration, error) {
	c, err := l.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	now := l.now()
	if now.Before(c.LockedUntil) {
		return true, c.LockedUntil.Sub(now), nil
	}
	return false, 0, nil
}

// Reset clears the counter for key immediately, called on successful
// authentication.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
