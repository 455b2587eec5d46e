package tenancy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerspace/ledgerspace/model"
)

// ClaimCache caches the claim set computed for a subject so that token
// issuance does not hit the membership store on every login. Entries are
// invalidated whenever an assignment for the subject changes.
// The key format is "claims:{subjectId}".
type ClaimCache interface {
	// Get looks up a cached claim set by subject.
	Get(ctx context.Context, subjectID string) (model.RoleClaims, bool, error)

	// Set stores a claim set with a TTL.
	Set(ctx context.Context, subjectID string, claims model.RoleClaims, ttl time.Duration) error

	// Invalidate drops the cached claim set for a subject.
	Invalidate(ctx context.Context, subjectID string) error

	// Ping reports whether the cache is reachable.
	Ping(ctx context.Context) error
}

// FormatClaimKey builds the standard claim cache key.
func FormatClaimKey(subjectID string) string {
	return "claims:" + subjectID
}

// --- MemoryClaimCache ---

// MemoryClaimCache is an in-memory ClaimCache with TTL support.
// Suitable for testing and single-instance deployments.
type MemoryClaimCache struct {
	mu      sync.RWMutex
	entries map[string]*claimEntry
}

type claimEntry struct {
	claims    model.RoleClaims
	expiresAt time.Time
}

// NewMemoryClaimCache creates a new in-memory claim cache.
func NewMemoryClaimCache() *MemoryClaimCache {
	return &MemoryClaimCache{entries: make(map[string]*claimEntry)}
}

// Get looks up a cached claim set, expiring stale entries.
func (c *MemoryClaimCache) Get(_ context.Context, subjectID string) (model.RoleClaims, bool, error) {
	key := FormatClaimKey(subjectID)

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.claims, true, nil
}

// Set stores a claim set with a TTL.
func (c *MemoryClaimCache) Set(_ context.Context, subjectID string, claims model.RoleClaims, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[FormatClaimKey(subjectID)] = &claimEntry{
		claims:    claims,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Invalidate drops the cached claim set for a subject.
func (c *MemoryClaimCache) Invalidate(_ context.Context, subjectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, FormatClaimKey(subjectID))
	return nil
}

// Ping always succeeds for the in-memory cache.
func (c *MemoryClaimCache) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of entries (including expired ones). For testing.
func (c *MemoryClaimCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// --- RedisClaimCache ---

// RedisClaimCache is a Redis-backed ClaimCache with TTL.
type RedisClaimCache struct {
	client redis.Cmdable
}

// NewRedisClaimCache creates a new Redis-backed claim cache.
func NewRedisClaimCache(client redis.Cmdable) *RedisClaimCache {
	return &RedisClaimCache{client: client}
}

// Get looks up a cached claim set in Redis.
func (c *RedisClaimCache) Get(ctx context.Context, subjectID string) (model.RoleClaims, bool, error) {
	key := FormatClaimKey(subjectID)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var claims model.RoleClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, false, fmt.Errorf("unmarshal claim entry %q: %w", key, err)
	}
	return claims, true, nil
}

// Set stores a claim set in Redis with a TTL.
func (c *RedisClaimCache) Set(ctx context.Context, subjectID string, claims model.RoleClaims, ttl time.Duration) error {
	key := FormatClaimKey(subjectID)

	data, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("marshal claim entry: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Invalidate drops the cached claim set for a subject.
func (c *RedisClaimCache) Invalidate(ctx context.Context, subjectID string) error {
	key := FormatClaimKey(subjectID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Ping checks connectivity to Redis.
func (c *RedisClaimCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
