package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/cache"
)

// RateLimitConfig configures both rate limiting middlewares.
type RateLimitConfig struct {
	Logger *slog.Logger
	Cache  *cache.Cache

	// Per-token limits for authenticated API traffic.
	APIEnabled           bool
	APIRequestsPerMinute int
	APIBurst             int

	// Per-IP limits for the unauthenticated webhook endpoints.
	WebhookEnabled bool
	WebhookRPS     int
	WebhookBurst   int
}

// RateLimitAPI limits authenticated requests per access token. It reads
// the token from the auth context, so it must run after Auth.
func RateLimitAPI(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.APIEnabled {
				next.ServeHTTP(w, r)
				return
			}

			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				// Auth did not run; nothing to key the bucket on.
				next.ServeHTTP(w, r)
				return
			}

			if cfg.APIRequestsPerMinute == 0 {
				setRateLimitHeaders(w, 0, 0, time.Now())
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Cache.CheckTokenRateLimit(
				r.Context(), authCtx.TokenID, cfg.APIRequestsPerMinute, cfg.APIBurst)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("token_id", authCtx.TokenID),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.APIRequestsPerMinute, result.Remaining, result.ResetAt)

			if !result.Allowed {
				logLimitHit(cfg.Logger, r, "api", result.RetryAfter,
					slog.String("token_id", authCtx.TokenID))
				rejectRateLimited(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP limits requests per client address. It fronts the webhook
// endpoints, which carry no access token.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.WebhookEnabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)

			result, err := cfg.Cache.CheckIPRateLimit(
				r.Context(), ip, cfg.WebhookRPS, cfg.WebhookBurst)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				logLimitHit(cfg.Logger, r, "webhook", result.RetryAfter,
					slog.String("ip", ip))
				rejectRateLimited(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func logLimitHit(logger *slog.Logger, r *http.Request, kind string, retryAfter time.Duration, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("type", kind),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Int64("retry_after_seconds", int64(retryAfter.Seconds())),
		slog.String("request_id", GetRequestID(r.Context())),
	}, extra...)
	logger.LogAttrs(r.Context(), slog.LevelWarn, "rate limit exceeded", attrs...)
}

func rejectRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	writeRateLimitError(w, retryAfter)
}

// setRateLimitHeaders stamps the standard X-RateLimit-* trio. A limit of
// zero means unmetered and emits nothing.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// writeRateLimitError writes the 429 response body.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":"Rate limit exceeded. Retry after %d seconds.","code":"RATE_LIMITED"}`,
		int(retryAfter.Seconds()))
}

// getClientIP resolves the client address behind proxies: first hop of
// X-Forwarded-For, then X-Real-IP, then the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		return ip
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
