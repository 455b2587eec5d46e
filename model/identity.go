package model

import (
	"context"
)

// Identity is the externally-authenticated principal behind a request.
// It is built once by the authentication middleware from verified token
// claims, is immutable afterwards, and is safe for concurrent reads.
// The workspace role claims it carries are trusted as-is; signature
// verification is the identity provider's job and happens before an
// Identity ever exists.
type Identity struct {
	SubjectID     string
	Email         string
	Claims        map[string]any
	WorkspaceRoles RoleClaims
	CorrelationID string
	TraceID       string
}

// Claim returns the value of the given raw token claim, or nil.
func (id *Identity) Claim(key string) any {
	if id.Claims == nil {
		return nil
	}
	return id.Claims[key]
}

type identityKey struct{}

// WithIdentity attaches an Identity to the given context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the Identity from the context, or returns nil
// if not present.
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// MustIdentity extracts the Identity from the context, panicking if it
// is not present. This is safe to call in handlers that are guaranteed
// to run behind the authentication middleware.
func MustIdentity(ctx context.Context) *Identity {
	id := IdentityFrom(ctx)
	if id == nil {
		panic("model: Identity not found in context")
	}
	return id
}
