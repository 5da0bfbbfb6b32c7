package authz

// Authorize evaluates the tenant/role/area rules for one actor-action-resource
// triple. It is a pure function: no I/O, no clock, safe under any concurrency.
// Rules run in order and the first match wins:
//
//  1. inactive actor         -> deny
//  2. tenant mismatch        -> deny, regardless of role
//  3. CEO or Admin           -> allow within the tenant
//  4. Manager                -> allow iff resource area matches the actor's area
//  5. Analyst                -> allow iff the resource is owned by or assigned to the actor
//  6. anything else          -> deny
//
// Denials return ErrForbidden, except a Manager with no area which returns
// ErrMisconfiguredActor so operators can tell broken data from an intrusion.
func Authorize(actor Actor, action Action, res Resource) (Decision, error) {
	deny := Decision{}

	if !actor.Active {
		return deny, ErrForbidden
	}
	if actor.TenantID == "" || actor.TenantID != res.TenantID {
		return deny, ErrForbidden
	}

	switch actor.Role {
	case RoleCEO, RoleAdmin:
		return allow(actor, action), nil

	case RoleManager:
		if actor.AreaID == "" {
			return deny, ErrMisconfiguredActor
		}
		if action == ActionList {
			return allow(actor, action), nil
		}
		if res.AreaID != actor.AreaID {
			return deny, ErrForbidden
		}
		return allow(actor, action), nil

	case RoleAnalyst:
		if action == ActionList {
			return allow(actor, action), nil
		}
		if assignedTo(actor, res) {
			return allow(actor, action), nil
		}
		return deny, ErrForbidden
	}

	return deny, ErrForbidden
}

// ListFilter returns the narrowing predicate an allowed list operation must
// apply. CEO/Admin listings are constrained to the tenant only.
func ListFilter(actor Actor) (Filter, error) {
	decision, err := Authorize(actor, ActionList, Resource{TenantID: actor.TenantID})
	if err != nil {
		return Filter{}, err
	}
	if decision.Filter == nil {
		return Filter{TenantID: actor.TenantID}, nil
	}
	return *decision.Filter, nil
}

func allow(actor Actor, action Action) Decision {
	d := Decision{Allow: true}
	if action != ActionList {
		return d
	}
	f := Filter{TenantID: actor.TenantID}
	switch actor.Role {
	case RoleManager:
		f.AreaID = actor.AreaID
	case RoleAnalyst:
		f.OwnerID = actor.UserID
	}
	d.Filter = &f
	return d
}

func assignedTo(actor Actor, res Resource) bool {
	if res.OwnerID != "" && res.OwnerID == actor.UserID {
		return true
	}
	for _, id := range res.Assignees {
		if id == actor.UserID {
			return true
		}
	}
	return false
}
