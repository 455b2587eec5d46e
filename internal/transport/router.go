package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ledgerspace/ledgerspace/internal/config"
	"github.com/ledgerspace/ledgerspace/internal/ledger"
	"github.com/ledgerspace/ledgerspace/internal/tenancy"
	"github.com/ledgerspace/ledgerspace/model"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Authenticate func(http.Handler) http.Handler
	Gate         *Gate
	Ledger       ledger.Store
	Memberships  tenancy.MembershipStore
	Claims       *tenancy.ClaimsProvider
	FeedSecret   string

	// Observability hooks; any may be nil.
	Tracing        func(http.Handler) http.Handler
	Metrics        func(http.Handler) http.Handler
	HealthHandler  http.HandlerFunc
	ReadyHandler   http.HandlerFunc
	MetricsHandler http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware. Ordering on gated routes is load-bearing:
// authenticate, evaluate the access policy, resolve the workspace cell,
// then the business handler.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Tracing != nil {
		r.Use(deps.Tracing)
	}

	// Public routes — bypass authentication.
	r.Get("/health", orDefault(deps.HealthHandler, handleHealthDefault))
	r.Get("/ready", orDefault(deps.ReadyHandler, handleHealthDefault))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, deps.MetricsHandler)
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}
	param := deps.Config.Identity.WorkspaceParam
	gate := deps.Gate

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildIdentity(deps.Config.Identity, logger))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics)
		}

		// Workspace boundary: authenticated but not workspace-gated.
		r.Post("/workspaces", handleWorkspaceCreate(deps.Ledger, deps.Memberships, deps.Claims, logger))
		r.Get("/workspaces", handleWorkspaceList(deps.Ledger, deps.Claims))

		// Workspace-gated routes. Each declares its policy at
		// registration; the pair Require+ResolveWorkspace is the whole
		// resolution pipeline for the route.
		r.Route("/workspaces/{"+param+"}", func(r chi.Router) {
			viewer := gate.Require(tenancy.RequireRole(model.RoleViewer))
			editor := gate.Require(tenancy.RequireRole(model.RoleEditor))
			owner := gate.Require(tenancy.RequireRole(model.RoleOwner))

			r.With(viewer, ResolveWorkspace).Get("/accounts", handleAccountList(deps.Ledger))
			r.With(editor, ResolveWorkspace).Post("/accounts", handleAccountCreate(deps.Ledger))
			r.With(viewer, ResolveWorkspace).Get("/summary", handleSummary(deps.Ledger))

			r.With(viewer, ResolveWorkspace).Get("/members", handleMemberList(deps.Memberships))
			r.With(owner, ResolveWorkspace).Post("/members", handleMemberAdd(deps.Memberships, deps.Claims))
			r.With(owner, ResolveWorkspace).Delete("/members/{subjectID}", handleMemberRemove(deps.Memberships, deps.Claims))
		})
	})

	// Trusted-automation surface: no session, anonymous workspace policy
	// only. The handler re-validates the shared secret itself.
	if deps.Config.Feed.Enabled {
		r.Group(func(r chi.Router) {
			r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
			r.Use(RequestLogging(logger))
			if deps.Metrics != nil {
				r.Use(deps.Metrics)
			}

			anon := gate.Require(tenancy.AllowAnonymousWorkspace())
			r.With(anon, ResolveWorkspace).
				Post("/internal/workspaces/{"+param+"}/feed", handleFeed(deps.Ledger, deps.FeedSecret, logger))
		})
	}

	return r
}

func orDefault(h http.HandlerFunc, def http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return def
}

func handleHealthDefault(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
