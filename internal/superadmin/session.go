package superadmin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"stratix.org/internal/obs"
)

// DefaultSessionTTL keeps the blast radius of a leaked token short;
// re-authentication is required after expiry.
const DefaultSessionTTL = 2 * time.Hour

const tokenBytes = 32 // 256 bits of entropy

// Sessions manages the opaque-token lifecycle over a SessionStore.
type Sessions struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithSessionTTL overrides the absolute token lifetime.
func WithSessionTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionClock overrides the time source, for tests.
func WithSessionClock(fn func() time.Time) SessionsOption {
	return func(s *Sessions) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessions constructs Sessions over store.
func NewSessions(store SessionStore, opts ...SessionsOption) *Sessions {
	s := &Sessions{store: store, ttl: DefaultSessionTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newToken draws the token from the CSPRNG only; it is never derived from
// time, sequence, or the account id.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("superadmin: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Create issues a session bound to one superadmin.
func (s *Sessions) Create(ctx context.Context, superadminID, ip, userAgent string) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	session := Session{
		Token:        token,
		SuperadminID: superadminID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.ttl),
		IP:           ip,
		UserAgent:    userAgent,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return session, nil
}

// Validate resolves a token. Expiry is a wall-clock comparison here, so
// correctness never depends on reaper timing, and an expired session is
// indistinguishable from an unknown one.
func (s *Sessions) Validate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthorized
	}
	session, err := s.store.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrUnauthorized
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !s.now().Before(session.ExpiresAt) {
		return Session{}, ErrUnauthorized
	}
	return session, nil
}

// Revoke destroys a session. Revoking an unknown token is not an error.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeAll destroys every session of one superadmin, used when the
// account is deactivated.
func (s *Sessions) RevokeAll(ctx context.Context, superadminID string) (int, error) {
	n, err := s.store.DeleteBySuperadmin(ctx, superadminID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// ReapExpired deletes sessions past expiry and reports how many.
func (s *Sessions) ReapExpired(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n > 0 {
		obs.ObserveSessionsReaped(n)
	}
	return n, nil
}

// RunReaper sweeps expired sessions on a fixed interval until ctx is done.
// Validate never consults the reaper, so a slow sweep cannot resurrect an
// expired token.
func (s *Sessions) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReapExpired(ctx); err != nil {
				obs.LogRequest(map[string]any{
					"level": "error",
					"msg":   "session_reap_failed",
					"error": err.Error(),
				})
			}
		}
	}
}
