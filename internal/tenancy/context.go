package tenancy

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerspace/ledgerspace/model"
)

// ErrWorkspaceNotResolved is returned when the current workspace is read
// before any evaluator resolved one. Failing loudly here is deliberate:
// a silent default workspace would scope queries to the wrong tenant,
// which is far worse than a crash.
var ErrWorkspaceNotResolved = errors.New("tenancy: workspace context read before it was resolved")

// ErrWorkspaceRebind is returned when a request tries to resolve its
// workspace a second time. The cell is bind-once even for equal values;
// a second bind always indicates a pipeline wiring bug.
var ErrWorkspaceRebind = errors.New("tenancy: workspace context already resolved for this request")

// WorkspaceContext is the request-scoped cell holding the workspace a
// request operates on. A fresh cell is seeded into the request context
// at the start of every request and bound at most once after
// authorization; it is owned by that single request and never shared.
type WorkspaceContext struct {
	mu          sync.Mutex
	bound       bool
	workspaceID uuid.UUID
	role        model.Role
}

// NewWorkspaceContext creates an unbound cell.
func NewWorkspaceContext() *WorkspaceContext {
	return &WorkspaceContext{role: model.RoleNone}
}

// Bind resolves the cell to a workspace and the caller's role on it
// (RoleNone for anonymous grants). Binding twice within one request is
// a programming error, regardless of whether the values match.
func (c *WorkspaceContext) Bind(workspaceID uuid.UUID, role model.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound {
		return ErrWorkspaceRebind
	}
	c.bound = true
	c.workspaceID = workspaceID
	c.role = role
	return nil
}

// Current returns the resolved workspace and role. It never returns a
// zero workspace: reading an unbound cell fails with
// ErrWorkspaceNotResolved.
func (c *WorkspaceContext) Current() (uuid.UUID, model.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bound {
		return uuid.Nil, model.RoleNone, ErrWorkspaceNotResolved
	}
	return c.workspaceID, c.role, nil
}

// MustCurrent is Current for handlers that are guaranteed to run behind
// the workspace gate. It panics on an unbound cell; the recovery
// middleware turns that into an opaque 500 with the detail logged.
func (c *WorkspaceContext) MustCurrent() (uuid.UUID, model.Role) {
	id, role, err := c.Current()
	if err != nil {
		panic(err)
	}
	return id, role
}

// Resolved reports whether the cell has been bound.
func (c *WorkspaceContext) Resolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

type workspaceContextKey struct{}

// SeedContext attaches a fresh, unbound WorkspaceContext to the given
// context. Run once per request, before authorization.
func SeedContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, workspaceContextKey{}, NewWorkspaceContext())
}

// WorkspaceFromContext returns the request's WorkspaceContext, or nil if
// the request was never seeded.
func WorkspaceFromContext(ctx context.Context) *WorkspaceContext {
	cell, _ := ctx.Value(workspaceContextKey{}).(*WorkspaceContext)
	return cell
}

// MustWorkspace returns the resolved workspace and role from the
// request context, panicking if the cell is absent or unbound. Business
// handlers behind the workspace gate read tenancy state only through
// this function.
func MustWorkspace(ctx context.Context) (uuid.UUID, model.Role) {
	cell := WorkspaceFromContext(ctx)
	if cell == nil {
		panic(ErrWorkspaceNotResolved)
	}
	return cell.MustCurrent()
}

// Grant is the outcome an evaluator publishes into request-scoped
// storage on Allow: the workspace the route names and, for the
// authenticated path, the caller's role on it. Anonymous grants carry
// RoleNone — endpoints using them re-verify permissions themselves.
type Grant struct {
	WorkspaceID uuid.UUID
	Role        model.Role
	Anonymous   bool
}

type grantKey struct{}

// WithGrant stores an evaluator's grant in the request context.
func WithGrant(ctx context.Context, g Grant) context.Context {
	return context.WithValue(ctx, grantKey{}, g)
}

// GrantFrom extracts the evaluator's grant, if one was published.
func GrantFrom(ctx context.Context) (Grant, bool) {
	g, ok := ctx.Value(grantKey{}).(Grant)
	return g, ok
}
