package superadmin

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSessions(t *testing.T, ttl time.Duration) (*Sessions, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sessions := NewSessions(NewMemoryStore().Sessions(),
		WithSessionTTL(ttl),
		WithSessionClock(func() time.Time { return now }),
	)
	return sessions, &now
}

func TestSessionCreateAndValidate(t *testing.T) {
	sessions, _ := newTestSessions(t, time.Hour)
	ctx := context.Background()

	created, err := sessions.Create(ctx, "sa-1", "10.0.0.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created.Token) < 43 {
		// 32 bytes base64url without padding is 43 characters.
		t.Fatalf("token too short for 256 bits of entropy: %d chars", len(created.Token))
	}
	if !created.ExpiresAt.Equal(created.IssuedAt.Add(time.Hour)) {
		t.Fatalf("expiry not absolute: issued=%v expires=%v", created.IssuedAt, created.ExpiresAt)
	}

	got, err := sessions.Validate(ctx, created.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.SuperadminID != "sa-1" || got.IP != "10.0.0.9" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionTokensAreUnique(t *testing.T) {
	sessions, _ := newTestSessions(t, time.Hour)
	ctx := context.Background()
	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		s, err := sessions.Create(ctx, "sa-1", "", "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, dup := seen[s.Token]; dup {
			t.Fatal("duplicate token")
		}
		seen[s.Token] = struct{}{}
	}
}

func TestValidateExpiryIndependentOfReaper(t *testing.T) {
	sessions, now := newTestSessions(t, time.Hour)
	ctx := context.Background()

	created, err := sessions.Create(ctx, "sa-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	*now = now.Add(time.Hour - time.Second)
	if _, err := sessions.Validate(ctx, created.Token); err != nil {
		t.Fatalf("expected valid just before expiry: %v", err)
	}

	// At expires_at exactly, without any reaper run, the session is dead.
	*now = now.Add(time.Second)
	if _, err := sessions.Validate(ctx, created.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized at expiry, got %v", err)
	}
}

func TestExpiredAndUnknownTokensLookIdentical(t *testing.T) {
	sessions, now := newTestSessions(t, time.Hour)
	ctx := context.Background()

	created, err := sessions.Create(ctx, "sa-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	*now = now.Add(2 * time.Hour)

	expiredErr := func() error { _, err := sessions.Validate(ctx, created.Token); return err }()
	unknownErr := func() error { _, err := sessions.Validate(ctx, "no-such-token"); return err }()
	if !errors.Is(expiredErr, ErrUnauthorized) || !errors.Is(unknownErr, ErrUnauthorized) {
		t.Fatalf("expected uniform ErrUnauthorized, got expired=%v unknown=%v", expiredErr, unknownErr)
	}
	if expiredErr.Error() != unknownErr.Error() {
		t.Fatalf("outcomes leak which case occurred: %q vs %q", expiredErr, unknownErr)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	sessions, _ := newTestSessions(t, time.Hour)
	ctx := context.Background()

	created, err := sessions.Create(ctx, "sa-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sessions.Revoke(ctx, created.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := sessions.Revoke(ctx, created.Token); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if _, err := sessions.Validate(ctx, created.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected revoked session invalid, got %v", err)
	}
}

func TestReapExpiredRemovesOnlyExpired(t *testing.T) {
	sessions, now := newTestSessions(t, time.Hour)
	ctx := context.Background()

	old, err := sessions.Create(ctx, "sa-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	*now = now.Add(30 * time.Minute)
	fresh, err := sessions.Create(ctx, "sa-2", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	*now = now.Add(31 * time.Minute) // old expired, fresh still valid
	reaped, err := sessions.ReapExpired(ctx)
	if err != nil {
		t.Fatalf("ReapExpired: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("reaped=%d, want 1", reaped)
	}
	if _, err := sessions.Validate(ctx, old.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected old session gone, got %v", err)
	}
	if _, err := sessions.Validate(ctx, fresh.Token); err != nil {
		t.Fatalf("fresh session should survive the sweep: %v", err)
	}
}

func TestRevokeAllBySuperadmin(t *testing.T) {
	sessions, _ := newTestSessions(t, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := sessions.Create(ctx, "sa-1", "", ""); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	other, err := sessions.Create(ctx, "sa-2", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := sessions.RevokeAll(ctx, "sa-1")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked=%d, want 3", n)
	}
	if _, err := sessions.Validate(ctx, other.Token); err != nil {
		t.Fatalf("unrelated session must survive: %v", err)
	}
}
