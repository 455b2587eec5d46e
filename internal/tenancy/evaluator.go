package tenancy

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerspace/ledgerspace/model"
)

// DenyReason identifies why an evaluator denied a request. Reasons are
// never written to response bodies; they feed logs, metrics, and the
// 403/404 status mapping.
type DenyReason int

const (
	// DenyNone is the zero reason carried by Allow decisions.
	DenyNone DenyReason = iota

	// DenyMalformedWorkspaceRef: the route's workspace value is missing
	// or does not parse as a workspace identifier.
	DenyMalformedWorkspaceRef

	// DenyNoRoleForWorkspace: the caller is authenticated but holds no
	// claim for the route workspace.
	DenyNoRoleForWorkspace

	// DenyInsufficientRole: the caller holds a claim below the required
	// minimum.
	DenyInsufficientRole
)

func (r DenyReason) String() string {
	switch r {
	case DenyNone:
		return "none"
	case DenyMalformedWorkspaceRef:
		return "malformed_workspace_ref"
	case DenyNoRoleForWorkspace:
		return "no_role_for_workspace"
	case DenyInsufficientRole:
		return "insufficient_role"
	default:
		return "unknown"
	}
}

// ConcealsWorkspace reports whether the deny must map to 404 rather
// than 403, so that unauthorized callers cannot probe which workspaces
// exist or who belongs to them.
func (r DenyReason) ConcealsWorkspace() bool {
	return r == DenyMalformedWorkspaceRef || r == DenyNoRoleForWorkspace
}

// Decision is the outcome of evaluating an access policy for one
// request. Deny is the normal unauthorized path, carried as a value —
// evaluators do not return errors for business outcomes.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Grant   Grant // valid only when Allowed
}

func allow(g Grant) Decision {
	return Decision{Allowed: true, Grant: g}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// RoleEvaluator decides whether an authenticated caller's claim set
// satisfies a role requirement for the workspace named in the route.
type RoleEvaluator struct {
	logger *zap.Logger
}

// NewRoleEvaluator creates an evaluator. logger may be nil.
func NewRoleEvaluator(logger *zap.Logger) *RoleEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleEvaluator{logger: logger}
}

// Evaluate checks routeValue and claims against the requirement.
// Checks run in fixed order so the reported reason always names the
// first failing cause: malformed route value, then missing claim, then
// insufficient role. req must come from Requirement/RequireRole; a
// hand-built requirement with an invalid role is a programming error.
func (e *RoleEvaluator) Evaluate(req *RoleRequirement, routeValue string, claims model.RoleClaims) Decision {
	if !req.MinimumRole.Valid() {
		panic("tenancy: role requirement has invalid minimum role")
	}

	workspaceID, err := uuid.Parse(routeValue)
	if err != nil {
		e.logger.Warn("malformed workspace reference in route",
			zap.String("route_value", routeValue),
			zap.Error(err),
		)
		return deny(DenyMalformedWorkspaceRef)
	}

	claim, ok := claims.ForWorkspace(workspaceID)
	if !ok {
		return deny(DenyNoRoleForWorkspace)
	}

	if !claim.Role.Meets(req.MinimumRole) {
		return deny(DenyInsufficientRole)
	}

	return allow(Grant{WorkspaceID: workspaceID, Role: claim.Role})
}

// AnonymousEvaluator admits requests to trusted-automation routes based
// purely on the route naming a syntactically valid workspace. It never
// consults claims and grants no role; the endpoint behind it is
// responsible for every further trust decision.
type AnonymousEvaluator struct {
	logger *zap.Logger
}

// NewAnonymousEvaluator creates an evaluator. logger may be nil.
func NewAnonymousEvaluator(logger *zap.Logger) *AnonymousEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnonymousEvaluator{logger: logger}
}

// Evaluate validates the route workspace value.
func (e *AnonymousEvaluator) Evaluate(routeValue string) Decision {
	workspaceID, err := uuid.Parse(routeValue)
	if err != nil {
		e.logger.Warn("malformed workspace reference in route",
			zap.String("route_value", routeValue),
			zap.Error(err),
		)
		return deny(DenyMalformedWorkspaceRef)
	}

	return allow(Grant{WorkspaceID: workspaceID, Role: model.RoleNone, Anonymous: true})
}
