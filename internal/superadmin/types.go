package superadmin

import "time"

// Superadmin is a platform-operator identity, disjoint from tenant users.
// Accounts are created out-of-band and deactivated rather than deleted.
type Superadmin struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Session is an opaque, time-bounded proof of a successful authentication.
// Expiry is absolute: issued-at plus a fixed TTL, never sliding.
type Session struct {
	Token        string    `json:"token"`
	SuperadminID string    `json:"superadmin_id"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

// Counter tracks failed authentication attempts for one key (an email or
// an "ip:"-prefixed address). Reset on success or window expiry.
type Counter struct {
	Key           string
	Count         int
	WindowExpires time.Time
	LockedUntil   time.Time
}
