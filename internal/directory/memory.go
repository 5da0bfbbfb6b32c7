package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"stratix.org/internal/ids"
)

// MemoryStore is an in-process Store used by tests and DSN-less development
// runs. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
	areas   map[string]Area
	users   map[string]User
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]Tenant),
		areas:   make(map[string]Area),
		users:   make(map[string]User),
		now:     time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *MemoryStore) SetClock(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.now = fn
	}
}

func (s *MemoryStore) GetTenant(_ context.Context, id string) (Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) GetTenantBySubdomain(_ context.Context, subdomain string) (Tenant, error) {
	subdomain = strings.TrimSpace(strings.ToLower(subdomain))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Subdomain == subdomain {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}

func (s *MemoryStore) CreateTenant(_ context.Context, t Tenant) (Tenant, error) {
	t.Subdomain = strings.TrimSpace(strings.ToLower(t.Subdomain))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if existing.Subdomain == t.Subdomain {
			return Tenant{}, ErrConflict
		}
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	now := s.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tenants[t.ID] = t
	return t, nil
}

func (s *MemoryStore) SetTenantActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Active = active
	t.UpdatedAt = s.now().UTC()
	s.tenants[id] = t
	return nil
}

func (s *MemoryStore) ListTenants(_ context.Context) ([]Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (s *MemoryStore) GetArea(_ context.Context, id string) (Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.areas[id]
	if !ok {
		return Area{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) ListAreasByTenant(_ context.Context, tenantID string) ([]Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Area
	for _, a := range s.areas {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListAreasByManager(_ context.Context, userID string) ([]Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Area
	for _, a := range s.areas {
		if a.ManagerID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, tenantID, email string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) UpdateUserRole(_ context.Context, userID, role, areaID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Role = role
	u.AreaID = areaID
	if err := ValidateUser(u); err != nil {
		return User{}, err
	}
	u.UpdatedAt = s.now().UTC()
	s.users[userID] = u
	return u, nil
}

// PutArea and PutUser seed records directly; used by tests and dev bootstrap.
func (s *MemoryStore) PutArea(a Area) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = ids.New()
	}
	s.areas[a.ID] = a
}

func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	s.users[u.ID] = u
}
