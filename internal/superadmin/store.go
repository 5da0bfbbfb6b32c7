package superadmin

import (
	"context"
	"time"
)

// Store groups the persistence operations of the superadmin plane. All
// methods are expected to honor ctx deadlines; the service treats any
// store failure as ErrStoreUnavailable and fails closed.
type Store interface {
	Superadmins() SuperadminStore
	Sessions() SessionStore
	Attempts() AttemptStore
}

// SuperadminStore manages platform-operator accounts.
type SuperadminStore interface {
	Create(ctx context.Context, sa Superadmin) (Superadmin, error)
	Find(ctx context.Context, id string) (Superadmin, error)
	FindByEmail(ctx context.Context, email string) (Superadmin, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// SessionStore persists opaque session tokens. Get must return ErrNotFound
// for unknown tokens; expiry is the caller's comparison, not the store's.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
	DeleteBySuperadmin(ctx context.Context, superadminID string) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// AttemptStore persists failed-attempt counters. Implementations lock per
// key, never globally, so authentication does not serialize behind one lock.
type AttemptStore interface {
	Get(ctx context.Context, key string) (Counter, error)
	Put(ctx context.Context, c Counter) error
	Delete(ctx context.Context, key string) error
}
