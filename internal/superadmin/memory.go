package superadmin

import (
	"context"
	"strings"
	"sync"
	"time"

	"stratix.org/internal/ids"
)

// MemoryStore implements Store in memory with per-map locking. It backs
// tests and DSN-less development runs.
type MemoryStore struct {
	superadmins memorySuperadmins
	sessions    memorySessions
	attempts    memoryAttempts
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		superadmins: memorySuperadmins{byID: map[string]Superadmin{}},
		sessions:    memorySessions{byToken: map[string]Session{}},
		attempts:    memoryAttempts{byKey: map[string]Counter{}},
	}
}

func (s *MemoryStore) Superadmins() SuperadminStore { return &s.superadmins }
func (s *MemoryStore) Sessions() SessionStore       { return &s.sessions }
func (s *MemoryStore) Attempts() AttemptStore       { return &s.attempts }

type memorySuperadmins struct {
	mu   sync.RWMutex
	byID map[string]Superadmin
}

func (m *memorySuperadmins) Create(_ context.Context, sa Superadmin) (Superadmin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sa.Email = strings.TrimSpace(strings.ToLower(sa.Email))
	for _, existing := range m.byID {
		if existing.Email == sa.Email {
			return Superadmin{}, ErrConflict
		}
	}
	if sa.ID == "" {
		sa.ID = ids.New()
	}
	now := time.Now().UTC()
	sa.CreatedAt = now
	sa.UpdatedAt = now
	m.byID[sa.ID] = sa
	return sa, nil
}

func (m *memorySuperadmins) Find(_ context.Context, id string) (Superadmin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sa, ok := m.byID[id]
	if !ok {
		return Superadmin{}, ErrNotFound
	}
	return sa, nil
}

func (m *memorySuperadmins) FindByEmail(_ context.Context, email string) (Superadmin, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sa := range m.byID {
		if sa.Email == email {
			return sa, nil
		}
	}
	return Superadmin{}, ErrNotFound
}

func (m *memorySuperadmins) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sa, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	sa.LastLoginAt = &at
	sa.UpdatedAt = at
	m.byID[id] = sa
	return nil
}

func (m *memorySuperadmins) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sa, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	sa.Active = active
	sa.UpdatedAt = time.Now().UTC()
	m.byID[id] = sa
	return nil
}

func (m *memorySuperadmins) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sa, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	sa.PasswordHash = hash
	sa.UpdatedAt = time.Now().UTC()
	m.byID[id] = sa
	return nil
}

type memorySessions struct {
	mu      sync.RWMutex
	byToken map[string]Session
}

func (m *memorySessions) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byToken[s.Token] = s
	return nil
}

func (m *memorySessions) Get(_ context.Context, token string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byToken[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *memorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byToken[token]; !ok {
		return ErrNotFound
	}
	delete(m.byToken, token)
	return nil
}

func (m *memorySessions) DeleteBySuperadmin(_ context.Context, superadminID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, s := range m.byToken {
		if s.SuperadminID == superadminID {
			delete(m.byToken, token)
			n++
		}
	}
	return n, nil
}

func (m *memorySessions) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, s := range m.byToken {
		if !before.Before(s.ExpiresAt) {
			delete(m.byToken, token)
			n++
		}
	}
	return n, nil
}

type memoryAttempts struct {
	mu    sync.RWMutex
	byKey map[string]Counter
}

func (m *memoryAttempts) Get(_ context.Context, key string) (Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byKey[key]
	if !ok {
		return Counter{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryAttempts) Put(_ context.Context, c Counter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[c.Key] = c
	return nil
}

func (m *memoryAttempts) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byKey[key]; !ok {
		return ErrNotFound
	}
	delete(m.byKey, key)
	return nil
}
