package tenancy

import (
	"fmt"

	"github.com/ledgerspace/ledgerspace/model"
)

// RoleRequirement states that the caller must hold at least MinimumRole
// on the workspace named in the route. Requirements are immutable and
// interned: one instance exists per distinct minimum role, created at
// registration time, never per request.
type RoleRequirement struct {
	MinimumRole model.Role
}

var requirements = map[model.Role]*RoleRequirement{
	model.RoleViewer: {MinimumRole: model.RoleViewer},
	model.RoleEditor: {MinimumRole: model.RoleEditor},
	model.RoleOwner:  {MinimumRole: model.RoleOwner},
}

// Requirement returns the interned requirement for the given minimum
// role. Requesting one for an invalid role is a programming error in
// route registration and panics at startup.
func Requirement(min model.Role) *RoleRequirement {
	req, ok := requirements[min]
	if !ok {
		panic(fmt.Sprintf("tenancy: no requirement for invalid role %d", int(min)))
	}
	return req
}

// PolicyKind selects which evaluator gates a route. The two kinds are
// mutually exclusive per endpoint and share the same pipeline slot.
type PolicyKind int

const (
	// PolicyRequireRole gates the route on an authenticated caller
	// holding at least the requirement's role on the route workspace.
	PolicyRequireRole PolicyKind = iota

	// PolicyAllowAnonymousWorkspace admits callers with no session at
	// all, checking only that the route names a well-formed workspace.
	// The name is deliberately alarming: endpoints opting in take over
	// all further trust decisions themselves.
	PolicyAllowAnonymousWorkspace
)

// AccessPolicy is the declarative marker a route registers to become
// workspace-gated. Routes without a policy are not gated and never
// resolve a workspace context.
type AccessPolicy struct {
	Kind        PolicyKind
	Requirement *RoleRequirement // nil unless Kind is PolicyRequireRole
}

// RequireRole declares that a route needs an authenticated caller with
// at least min on the route workspace.
func RequireRole(min model.Role) AccessPolicy {
	return AccessPolicy{
		Kind:        PolicyRequireRole,
		Requirement: Requirement(min),
	}
}

// AllowAnonymousWorkspace declares a trusted-automation route that takes
// its workspace from the route value without any role check.
func AllowAnonymousWorkspace() AccessPolicy {
	return AccessPolicy{Kind: PolicyAllowAnonymousWorkspace}
}
