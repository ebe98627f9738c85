package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenLimitKeyPrefix = "ratelimit:token:"
	ipLimitKeyPrefix    = "ratelimit:ip:"

	// Bucket state lives only slightly longer than a full refill so idle
	// keys expire on their own.
	tokenLimitTTL = 120 * time.Second
	ipLimitTTL    = 10 * time.Second
)

// RateLimitResult reports the outcome of one rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucketScript refills and consumes from a token bucket atomically.
// Returns {allowed, retry_after_seconds, remaining_tokens}.
var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(state[1]) or burst
	local last_update = tonumber(state[2]) or now

	tokens = math.min(burst, tokens + (now - last_update) * rate)

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckTokenRateLimit applies the per-token bucket. A ratePerMinute of
// zero means the token is unmetered.
func (c *Cache) CheckTokenRateLimit(ctx context.Context, tokenID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute == 0 {
		return allowAll(burst), nil
	}

	key := tokenLimitKeyPrefix + tokenID
	return c.consumeBucket(ctx, key, float64(ratePerMinute)/60.0, burst, tokenLimitTTL)
}

// CheckIPRateLimit applies the per-client bucket for unauthenticated
// traffic. The address is hashed so raw IPs never land in Redis.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	key := ipLimitKeyPrefix + hashIP(ip)
	return c.consumeBucket(ctx, key, float64(ratePerSecond), burst, ipLimitTTL)
}

func (c *Cache) consumeBucket(ctx context.Context, key string, rate float64, burst int, ttl time.Duration) (*RateLimitResult, error) {
	now := time.Now().Unix()

	res, err := bucketScript.Run(ctx, c.client,
		[]string{key},
		rate, burst, now, int(ttl.Seconds()),
	).Int64Slice()
	if err != nil {
		// Redis being down must not take the API down with it.
		return allowAll(burst), nil
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Remaining:  res[2],
		ResetAt:    time.Now().Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(res[1]) * time.Second,
	}, nil
}

func allowAll(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// hashIP truncates a SHA-256 of the address to 16 hex characters, enough
// to keep buckets distinct without storing the address itself.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
