package superadmin

import (
	"context"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewLimiter(NewMemoryStore().Attempts(), WithLimiterClock(func() time.Time { return now }))
	return limiter, &now
}

func TestLockoutTriggersAtThreshold(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 1; i < defaultMaxFailures; i++ {
		count, err := limiter.RecordFailure(ctx, "admin@x.com")
		if err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		if count != i {
			t.Fatalf("attempt %d: count=%d", i, count)
		}
		locked, _, err := limiter.IsLocked(ctx, "admin@x.com")
		if err != nil || locked {
			t.Fatalf("attempt %d: locked=%v err=%v", i, locked, err)
		}
	}

	if _, err := limiter.RecordFailure(ctx, "admin@x.com"); err != nil {
		t.Fatalf("threshold failure: %v", err)
	}
	locked, remaining, err := limiter.IsLocked(ctx, "admin@x.com")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked {
		t.Fatal("expected lockout after N consecutive failures")
	}
	if remaining != defaultLockoutPeriod {
		t.Fatalf("remaining=%v, want %v", remaining, defaultLockoutPeriod)
	}
}

func TestResetClearsLockImmediately(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < defaultMaxFailures; i++ {
		if _, err := limiter.RecordFailure(ctx, "admin@x.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	if err := limiter.Reset(ctx, "admin@x.com"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	locked, _, err := limiter.IsLocked(ctx, "admin@x.com")
	if err != nil || locked {
		t.Fatalf("expected unlocked after reset, locked=%v err=%v", locked, err)
	}
	// Resetting an unknown key is fine.
	if err := limiter.Reset(ctx, "never-seen@x.com"); err != nil {
		t.Fatalf("Reset unknown key: %v", err)
	}
}

func TestLockoutExpiresByWallClock(t *testing.T) {
	limiter, now := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < defaultMaxFailures; i++ {
		if _, err := limiter.RecordFailure(ctx, "admin@x.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	*now = now.Add(defaultLockoutPeriod + time.Second)
	locked, _, err := limiter.IsLocked(ctx, "admin@x.com")
	if err != nil || locked {
		t.Fatalf("expected lockout to expire, locked=%v err=%v", locked, err)
	}
}

func TestFailuresDuringLockoutDoNotCompound(t *testing.T) {
	limiter, now := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < defaultMaxFailures; i++ {
		if _, err := limiter.RecordFailure(ctx, "admin@x.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	_, lockedAt, err := limiter.IsLocked(ctx, "admin@x.com")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	// More failures while locked must not extend the lockout.
	if _, err := limiter.RecordFailure(ctx, "admin@x.com"); err != nil {
		t.Fatalf("RecordFailure during lockout: %v", err)
	}
	*now = now.Add(time.Minute)
	_, remaining, err := limiter.IsLocked(ctx, "admin@x.com")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if remaining >= lockedAt {
		t.Fatalf("lockout extended: was %v, now %v", lockedAt, remaining)
	}
}

func TestWindowExpiryResetsCount(t *testing.T) {
	limiter, now := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < defaultMaxFailures-1; i++ {
		if _, err := limiter.RecordFailure(ctx, "admin@x.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	*now = now.Add(defaultFailureWindow + time.Second)
	count, err := limiter.RecordFailure(ctx, "admin@x.com")
	if err != nil {
		t.Fatalf("RecordFailure after window: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected window expiry to reset count, got %d", count)
	}
}

func TestEmailAndIPKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < defaultMaxFailures; i++ {
		if _, err := limiter.RecordFailure(ctx, IPKey("10.0.0.1")); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	locked, _, err := limiter.IsLocked(ctx, IPKey("10.0.0.1"))
	if err != nil || !locked {
		t.Fatalf("expected ip key locked, locked=%v err=%v", locked, err)
	}
	locked, _, err = limiter.IsLocked(ctx, "admin@x.com")
	if err != nil || locked {
		t.Fatalf("expected email key untouched, locked=%v err=%v", locked, err)
	}
}
