package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskservice/internal/model"
)

const identityKeyPrefix = "user:"

// DefaultIdentityTTL bounds how long a cached identity is trusted.
const DefaultIdentityTTL = 5 * time.Minute

// KeyValue is the slice of the cache client the identity cache needs.
// *cache.Client satisfies it.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IdentityCacheInterface defines the interface for cached identity lookups.
type IdentityCacheInterface interface {
	Get(ctx context.Context, userID string) (*model.Identity, error)
	Set(ctx context.Context, identity *model.Identity) error
}

// IdentityCache stores verified identities keyed by user id.
type IdentityCache struct {
	kv  KeyValue
	ttl time.Duration
}

// Ensure IdentityCache implements IdentityCacheInterface
var _ IdentityCacheInterface = (*IdentityCache)(nil)

// NewIdentityCache creates a new identity cache. A non-positive ttl selects
// DefaultIdentityTTL.
func NewIdentityCache(kv KeyValue, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	return &IdentityCache{kv: kv, ttl: ttl}
}

// IdentityKey returns the cache key for a user id.
func IdentityKey(userID string) string {
	return identityKeyPrefix + userID
}

// Get returns the cached identity, or nil on a miss.
func (c *IdentityCache) Get(ctx context.Context, userID string) (*model.Identity, error) {
	data, err := c.kv.Get(ctx, IdentityKey(userID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var identity model.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("unmarshal cached identity: %w", err)
	}
	if identity.ID == "" {
		return nil, fmt.Errorf("cached identity for %s has no id", userID)
	}
	return &identity, nil
}

// Set stores the identity with the configured TTL.
func (c *IdentityCache) Set(ctx context.Context, identity *model.Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return c.kv.Set(ctx, IdentityKey(identity.ID), payload, c.ttl)
}
