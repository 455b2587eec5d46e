package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ledgerspace/ledgerspace/internal/tenancy"
	"github.com/ledgerspace/ledgerspace/model"
)

// Deny responses use fixed messages: the body must never reveal whether
// the workspace exists or which check failed.
const (
	msgWorkspaceNotFound = "Workspace not found"
	msgInsufficientRole  = "Insufficient role for this operation"
)

// AuthzRecorder receives one record per access policy decision. Satisfied
// by observability.Metrics; nil disables recording.
type AuthzRecorder interface {
	RecordAuthzDecision(policy, outcome, reason string)
}

// Gate evaluates access policies for workspace-scoped routes. One Gate is
// built at startup and shared by every gated route; the per-route policy
// is fixed at registration time.
type Gate struct {
	role      *tenancy.RoleEvaluator
	anonymous *tenancy.AnonymousEvaluator
	param     string
	metrics   AuthzRecorder
	logger    *zap.Logger
}

// NewGate creates a gate reading the workspace from the given chi route
// parameter. metrics and logger may be nil.
func NewGate(role *tenancy.RoleEvaluator, anonymous *tenancy.AnonymousEvaluator, param string, metrics AuthzRecorder, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		role:      role,
		anonymous: anonymous,
		param:     param,
		metrics:   metrics,
		logger:    logger,
	}
}

// Require returns middleware enforcing the given policy on a route. It
// runs after authentication and before workspace resolution: on Allow it
// publishes the resolved grant for ResolveWorkspace to pick up, on Deny
// it writes the mapped 403/404 and stops the chain.
func (g *Gate) Require(policy tenancy.AccessPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			routeValue := chi.URLParam(r, g.param)

			var d tenancy.Decision
			var policyName string
			switch policy.Kind {
			case tenancy.PolicyRequireRole:
				policyName = "require_" + policy.Requirement.MinimumRole.String()
				ident := model.IdentityFrom(r.Context())
				if ident == nil {
					// The authenticator is missing from the chain. Fail
					// closed rather than evaluate an empty claim set.
					g.logger.Error("workspace gate reached without identity",
						zap.String("path", r.URL.Path),
					)
					WriteError(w, model.NewUnauthorizedError("Authentication required"))
					return
				}
				d = g.role.Evaluate(policy.Requirement, routeValue, ident.WorkspaceRoles)
			case tenancy.PolicyAllowAnonymousWorkspace:
				policyName = "allow_anonymous_workspace"
				d = g.anonymous.Evaluate(routeValue)
			default:
				g.logger.Error("unknown access policy kind", zap.Int("kind", int(policy.Kind)))
				WriteError(w, model.NewInternalError())
				return
			}

			if !d.Allowed {
				g.record(policyName, "deny", d.Reason.String())
				g.logger.Debug("access policy denied",
					zap.String("policy", policyName),
					zap.String("reason", d.Reason.String()),
					zap.String("workspace_ref", routeValue),
				)
				if d.Reason.ConcealsWorkspace() {
					WriteNotFound(w, msgWorkspaceNotFound)
				} else {
					WriteForbidden(w, msgInsufficientRole)
				}
				return
			}

			g.record(policyName, "allow", "")
			ctx := tenancy.WithGrant(r.Context(), d.Grant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *Gate) record(policy, outcome, reason string) {
	if g.metrics != nil {
		g.metrics.RecordAuthzDecision(policy, outcome, reason)
	}
}

// ResolveWorkspace seeds a fresh workspace cell for the request and, when
// the gate published a grant, binds it. Routes without a gate never get a
// cell, so a handler mistakenly reading the workspace panics into the
// Recovery middleware instead of seeing a neighbor's tenant.
func ResolveWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tenancy.SeedContext(r.Context())
		if grant, ok := tenancy.GrantFrom(ctx); ok {
			cell := tenancy.WorkspaceFromContext(ctx)
			if err := cell.Bind(grant.WorkspaceID, grant.Role); err != nil {
				// A second Bind in one request is a wiring bug.
				panic(err)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
