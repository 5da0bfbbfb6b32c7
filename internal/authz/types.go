package authz

import "strings"

// Role is the tenant-scoped role model. CEO and Admin carry implicit
// tenant-wide scope, Manager is confined to one area, Analyst only to
// resources assigned to them.
type Role string

const (
	RoleCEO     Role = "ceo"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAnalyst Role = "analyst"
)

// ParseRole normalizes a stored role value. Unknown roles stay unknown and
// fall through to the default-deny rule.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleCEO:
		return RoleCEO, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleManager:
		return RoleManager, true
	case RoleAnalyst:
		return RoleAnalyst, true
	default:
		return "", false
	}
}

// Action is the requested operation on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionList   Action = "list"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Actor is a resolved tenant-scoped identity at the moment of the request.
type Actor struct {
	UserID   string
	TenantID string
	Role     Role
	AreaID   string // empty unless Role is Manager
	Active   bool
}

// Resource describes the two ownership fields every tenant-owned entity
// carries, plus the explicit assignees used for Analyst matching.
type Resource struct {
	TenantID  string
	AreaID    string // empty for tenant-wide resources
	OwnerID   string
	Assignees []string
}

// Filter narrows a listing query instead of post-filtering rows. Empty
// fields mean "no constraint on that column".
type Filter struct {
	TenantID string
	AreaID   string
	OwnerID  string
}

// Decision is the outcome of a policy evaluation. Filter is only set for
// list actions where the caller must narrow the query.
type Decision struct {
	Allow  bool
	Filter *Filter
}
