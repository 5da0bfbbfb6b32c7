package directory

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultStaleness bounds how long a demoted user can act on cached
// privilege. Role and area reassignments invalidate the entry immediately;
// the TTL covers writes that bypass this process.
const DefaultStaleness = 5 * time.Second

const defaultCacheSize = 4096

type userEntry struct {
	user         User
	tenantActive bool
}

// Cached is a read-mostly view over a Store. Only the hot lookup path
// (user + owning tenant, resolved per request) is cached; administrative
// reads go straight through.
type Cached struct {
	store Store
	users *lru.LRU[string, userEntry]
}

// NewCached wraps store with a TTL-bounded user cache. A non-positive ttl
// falls back to DefaultStaleness.
func NewCached(store Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultStaleness
	}
	return &Cached{
		store: store,
		users: lru.NewLRU[string, userEntry](defaultCacheSize, nil, ttl),
	}
}

// ResolveUser returns the user and whether its tenant is active, serving
// from cache within the staleness window.
func (c *Cached) ResolveUser(ctx context.Context, userID string) (User, bool, error) {
	if entry, ok := c.users.Get(userID); ok {
		return entry.user, entry.tenantActive, nil
	}
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, false, err
	}
	tenant, err := c.store.GetTenant(ctx, user.TenantID)
	if err != nil {
		return User{}, false, err
	}
	c.users.Add(userID, userEntry{user: user, tenantActive: tenant.Active})
	return user, tenant.Active, nil
}

// Invalidate drops the cached entry for a user. Called on every role or
// area reassignment so stale privilege cannot outlive the write.
func (c *Cached) Invalidate(userID string) {
	c.users.Remove(userID)
}

// InvalidateAll purges the cache, used when a tenant is deactivated and
// every member must lose access at once.
func (c *Cached) InvalidateAll() {
	c.users.Purge()
}

// UpdateUserRole writes through to the store and invalidates the entry.
func (c *Cached) UpdateUserRole(ctx context.Context, userID, role, areaID string) (User, error) {
	user, err := c.store.UpdateUserRole(ctx, userID, role, areaID)
	if err != nil {
		return User{}, err
	}
	c.Invalidate(userID)
	return user, nil
}

// SetTenantActive writes through to the store. Deactivation purges the
// whole cache rather than walking entries per tenant.
func (c *Cached) SetTenantActive(ctx context.Context, tenantID string, active bool) error {
	if err := c.store.SetTenantActive(ctx, tenantID, active); err != nil {
		return err
	}
	if !active {
		c.InvalidateAll()
	}
	return nil
}

// Store exposes the underlying store for administrative reads that must
// not be served stale.
func (c *Cached) Store() Store {
	return c.store
}
