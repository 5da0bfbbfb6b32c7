package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"stratix.org/internal/authz"
)

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: resource conflict")
	ErrInvalidInput = errors.New("directory: invalid input")
)

// Tenant is the identity-scoping root. Tenants are soft-deactivated, never
// hard-deleted while referenced.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Area is a tenant-scoped organizational unit. ManagerID, when set, must
// reference a Manager-role user in the same tenant, and a user manages at
// most one area.
type Area struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	ManagerID string    `json:"manager_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a tenant-scoped actor. A user belongs to exactly one tenant for
// its lifetime.
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	AreaID    string    `json:"area_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor converts a directory record into the policy engine's view of it.
// The tenant's own active flag participates: users of a deactivated tenant
// are treated as inactive.
func (u User) Actor(tenantActive bool) authz.Actor {
	role, _ := authz.ParseRole(u.Role)
	return authz.Actor{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Role:     role,
		AreaID:   u.AreaID,
		Active:   u.Active && tenantActive,
	}
}

// ValidateUser enforces the role/area invariants before a user record is
// written: Manager requires an area, every other role must not carry one.
func ValidateUser(u User) error {
	role, ok := authz.ParseRole(u.Role)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, u.Role)
	}
	if u.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(u.Email))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	switch role {
	case authz.RoleManager:
		if u.AreaID == "" {
			return fmt.Errorf("%w: manager requires an area", ErrInvalidInput)
		}
	default:
		if u.AreaID != "" {
			return fmt.Errorf("%w: role %s must not carry an area", ErrInvalidInput, role)
		}
	}
	return nil
}

// ValidateAreaManager enforces the area-manager invariant: the referenced
// user must be a same-tenant Manager not already managing another area.
func ValidateAreaManager(area Area, manager User, managedAreas []Area) error {
	if manager.TenantID != area.TenantID {
		return fmt.Errorf("%w: manager belongs to another tenant", ErrInvalidInput)
	}
	if role, _ := authz.ParseRole(manager.Role); role != authz.RoleManager {
		return fmt.Errorf("%w: area manager must have role manager", ErrInvalidInput)
	}
	for _, a := range managedAreas {
		if a.ID != area.ID {
			return fmt.Errorf("%w: user already manages area %s", ErrConflict, a.ID)
		}
	}
	return nil
}
