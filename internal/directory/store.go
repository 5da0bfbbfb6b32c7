package directory

import "context"

// Store describes the persistence operations the directory needs. The pg
// implementation lives in internal/store/pg; tests use the memory store.
type Store interface {
	GetTenant(ctx context.Context, id string) (Tenant, error)
	GetTenantBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
	CreateTenant(ctx context.Context, t Tenant) (Tenant, error)
	SetTenantActive(ctx context.Context, id string, active bool) error
	ListTenants(ctx context.Context) ([]Tenant, error)

	GetArea(ctx context.Context, id string) (Area, error)
	ListAreasByTenant(ctx context.Context, tenantID string) ([]Area, error)
	ListAreasByManager(ctx context.Context, userID string) ([]Area, error)

	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, tenantID, email string) (User, error)
	UpdateUserRole(ctx context.Context, userID, role, areaID string) (User, error)
}
