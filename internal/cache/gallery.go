package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache key prefixes and TTLs.
const (
	galleryKeyPrefix     = "gallery:"
	galleryGenerationKey = "gallery:gen"

	// DefaultGalleryTTL is the TTL for cached gallery pages.
	DefaultGalleryTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GalleryPageKey builds a cache key for a gallery page under a generation.
// Query and owner are hashed so arbitrary user input never lands in a key.
func GalleryPageKey(generation int64, query, ownerID string, page, pageSize int) string {
	sum := sha256.Sum256([]byte(query + "\x00" + ownerID))
	return fmt.Sprintf("%s%d:%s:%d:%d", galleryKeyPrefix, generation, hex.EncodeToString(sum[:8]), page, pageSize)
}

// GalleryGeneration returns the current gallery cache generation.
// A missing counter reads as generation 0.
func (c *Cache) GalleryGeneration(ctx context.Context) (int64, error) {
	result, err := c.client.Get(ctx, galleryGenerationKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read gallery generation: %w", err)
	}

	gen, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse gallery generation: %w", err)
	}

	return gen, nil
}

// InvalidateGallery bumps the gallery generation, orphaning every cached page.
// Orphaned entries age out via their TTL. Called after any image mutation.
func (c *Cache) InvalidateGallery(ctx context.Context) error {
	if err := c.client.Incr(ctx, galleryGenerationKey).Err(); err != nil {
		return fmt.Errorf("failed to bump gallery generation: %w", err)
	}
	return nil
}

// GetGalleryPage retrieves a cached gallery page payload by key.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetGalleryPage(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get gallery page: %w", err)
	}
	return data, nil
}

// SetGalleryPage caches a serialized gallery page.
func (c *Cache) SetGalleryPage(ctx context.Context, key string, payload []byte) error {
	if err := c.client.Set(ctx, key, payload, DefaultGalleryTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache gallery page: %w", err)
	}
	return nil
}
