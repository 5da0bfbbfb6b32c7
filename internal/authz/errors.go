package authz

import "errors"

var (
	// ErrForbidden covers every policy denial: tenant mismatch, area
	// mismatch, missing assignment, unknown role.
	ErrForbidden = errors.New("authz: forbidden")

	// ErrMisconfiguredActor flags a data-integrity bug (e.g. a Manager
	// without an area) rather than a security decision. Denies by
	// default but is surfaced distinctly for operator attention.
	ErrMisconfiguredActor = errors.New("authz: misconfigured actor")
)
