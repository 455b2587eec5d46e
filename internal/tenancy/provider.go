package tenancy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerspace/ledgerspace/model"
)

// ClaimsProvider computes the workspace role claims for a subject from
// the persisted role assignments. The identity provider calls it once
// at token issuance to embed the claim set in the session token; it is
// not on the per-request path. Reads go through the claim cache when
// one is configured; any assignment change must invalidate the subject.
type ClaimsProvider struct {
	store   MembershipStore
	cache   ClaimCache
	ttl     time.Duration
	logger  *zap.Logger
	metrics CacheRecorder
}

// CacheRecorder counts claim cache hits and misses.
type CacheRecorder interface {
	RecordClaimCacheHit()
	RecordClaimCacheMiss()
}

// NewClaimsProvider creates a provider over the given store. cache may
// be nil to disable caching.
func NewClaimsProvider(store MembershipStore, cache ClaimCache, ttl time.Duration, logger *zap.Logger) *ClaimsProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimsProvider{store: store, cache: cache, ttl: ttl, logger: logger}
}

// SetMetrics installs an optional hit/miss recorder. Call before serving.
func (p *ClaimsProvider) SetMetrics(rec CacheRecorder) {
	p.metrics = rec
}

// WorkspaceClaims returns all role claims held by the subject. A subject
// with no assignments is valid and yields an empty set, not an error —
// a fresh user has no workspaces until they create their first one.
func (p *ClaimsProvider) WorkspaceClaims(ctx context.Context, subjectID string) (model.RoleClaims, error) {
	if p.cache != nil {
		claims, found, err := p.cache.Get(ctx, subjectID)
		if err != nil {
			// Degraded mode: fall through to the store.
			p.logger.Warn("claim cache read failed",
				zap.String("subject_id", subjectID),
				zap.Error(err),
			)
		} else if found {
			if p.metrics != nil {
				p.metrics.RecordClaimCacheHit()
			}
			return claims, nil
		}
		if p.metrics != nil {
			p.metrics.RecordClaimCacheMiss()
		}
	}

	memberships, err := p.store.List(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	claims := make(model.RoleClaims, 0, len(memberships))
	for _, m := range memberships {
		claims = append(claims, model.RoleClaim{
			WorkspaceID: m.WorkspaceID,
			Role:        m.Role,
		})
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, subjectID, claims, p.ttl); err != nil {
			p.logger.Warn("claim cache write failed",
				zap.String("subject_id", subjectID),
				zap.Error(err),
			)
		}
	}

	return claims, nil
}

// Invalidate drops any cached claim set for the subject. Call after
// every Assign or Remove so newly issued tokens see the change.
func (p *ClaimsProvider) Invalidate(ctx context.Context, subjectID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx, subjectID); err != nil {
		p.logger.Warn("claim cache invalidation failed",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}
}
