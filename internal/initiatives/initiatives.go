// Package initiatives holds the demo tenant-owned resource guarded by the
// policy engine. The descriptor carries exactly the ownership fields the
// policy needs; richer initiative data lives behind the same ids.
package initiatives

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"stratix.org/internal/authz"
	"stratix.org/internal/ids"
)

var ErrNotFound = errors.New("initiatives: not found")

// Initiative is a tenant-scoped work item. AreaID scopes it to one
// organizational area; OwnerID and Assignees drive Analyst access.
type Initiative struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	AreaID    string    `json:"area_id,omitempty"`
	OwnerID   string    `json:"owner_id"`
	Assignees []string  `json:"assignees,omitempty"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resource projects the initiative into the policy engine's view.
func (i Initiative) Resource() authz.Resource {
	return authz.Resource{
		TenantID:  i.TenantID,
		AreaID:    i.AreaID,
		OwnerID:   i.OwnerID,
		Assignees: i.Assignees,
	}
}

// Store is the read/write surface the HTTP guards sit in front of. List
// takes the narrowing filter produced by the policy so rows an actor may
// not see never leave the store.
type Store interface {
	Get(ctx context.Context, id string) (Initiative, error)
	List(ctx context.Context, f authz.Filter) ([]Initiative, error)
	Put(ctx context.Context, in Initiative) (Initiative, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore backs tests and DSN-less development runs.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Initiative
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]Initiative{}, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (m *MemoryStore) SetClock(fn func() time.Time) {
	if fn != nil {
		m.now = fn
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Initiative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.byID[id]
	if !ok {
		return Initiative{}, ErrNotFound
	}
	return in, nil
}

func (m *MemoryStore) List(_ context.Context, f authz.Filter) ([]Initiative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Initiative
	for _, in := range m.byID {
		if f.TenantID != "" && in.TenantID != f.TenantID {
			continue
		}
		if f.AreaID != "" && in.AreaID != f.AreaID {
			continue
		}
		if f.OwnerID != "" && !ownedOrAssigned(in, f.OwnerID) {
			continue
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, in Initiative) (Initiative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if in.ID == "" {
		in.ID = ids.New()
		in.CreatedAt = now
	} else if existing, ok := m.byID[in.ID]; ok {
		in.CreatedAt = existing.CreatedAt
	} else {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	m.byID[in.ID] = in
	return in, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// The Analyst list filter matches ownership or assignment; the owner-id
// column alone cannot express that, so the memory store widens it here.
// The pg implementation does the same with an "or assignees @>" clause.
func ownedOrAssigned(in Initiative, userID string) bool {
	if in.OwnerID == userID {
		return true
	}
	for _, a := range in.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}
