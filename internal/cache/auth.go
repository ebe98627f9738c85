package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pixelift/pixelift/internal/model"
)

const (
	authCtxKeyPrefix = "auth:ctx:"

	// Short TTL keeps revocations effective within minutes even if the
	// explicit cache invalidation is missed.
	authCtxTTL = 5 * time.Minute
)

// cachedAuth is the Redis representation of a verified token. Only the
// quick hash of the token is used as the key; the secret itself is
// never stored.
type cachedAuth struct {
	TokenID     string   `json:"token_id"`
	TokenPrefix string   `json:"token_prefix"`
	UserID      string   `json:"user_id"`
	Scopes      []string `json:"scopes"`
}

// GetAuthContext looks up a previously verified token by cache key.
// A miss, a Redis error, and a corrupt entry all return (nil, nil); the
// caller falls back to the full argon2 verification path.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCtxKeyPrefix+cacheKey).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var cached cachedAuth
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		TokenID:     cached.TokenID,
		TokenPrefix: cached.TokenPrefix,
		UserID:      cached.UserID,
		Scopes:      cached.Scopes,
	}, nil
}

// SetAuthContext caches a verified token's identity.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	data, err := json.Marshal(cachedAuth{
		TokenID:     auth.TokenID,
		TokenPrefix: auth.TokenPrefix,
		UserID:      auth.UserID,
		Scopes:      auth.Scopes,
	})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, authCtxKeyPrefix+cacheKey, data, authCtxTTL).Err()
}

// DeleteAuthContext drops a cached identity, called on token revocation
// and rotation.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, authCtxKeyPrefix+cacheKey).Err()
}
