package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/cache"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/repository"
)

// minAuthDuration pads every auth attempt to the same wall-clock floor
// so response timing does not reveal which verification step rejected
// the token.
const minAuthDuration = 200 * time.Millisecond

// AuthConfig holds dependencies for the auth middleware.
type AuthConfig struct {
	Logger     *slog.Logger
	Repository *repository.Repository
	Cache      *cache.Cache
}

// Auth authenticates every request with a bearer access token. Verified
// tokens are cached by quick hash so the argon2 check runs only on cache
// misses; all failures return an identical 401.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer func() {
				if elapsed := time.Since(start); elapsed < minAuthDuration {
					time.Sleep(minAuthDuration - elapsed)
				}
			}()

			authCtx, reason := authenticate(r, cfg)
			if authCtx == nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			cfg.Logger.Info("authentication successful",
				slog.String("token_id", authCtx.TokenID),
				slog.String("token_prefix", authCtx.TokenPrefix),
				slog.String("user_id", authCtx.UserID),
				slog.String("ip", r.RemoteAddr),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("cache_hit", reason == "cache"),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate resolves the request's token to an identity. On success
// the second return value says which path matched ("cache" or "db"); on
// failure it carries the log reason.
func authenticate(r *http.Request, cfg AuthConfig) (*model.AuthContext, string) {
	token := extractAccessToken(r)
	if token == "" {
		return nil, "missing_token"
	}

	parsed, err := auth.ParseAccessToken(token)
	if err != nil {
		return nil, "invalid_format"
	}

	cacheKey := auth.QuickHash(token)
	if cached, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey); cached != nil {
		return cached, "cache"
	}

	// The prefix is only 6 hex chars, so several tokens can share it;
	// verify the full secret against every candidate.
	candidates, err := cfg.Repository.GetAccessTokensByPrefix(r.Context(), parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		return nil, "database_error"
	}

	var matched *model.AccessToken
	for _, candidate := range candidates {
		if ok, err := auth.VerifySecret(token, candidate.TokenHash); err == nil && ok {
			matched = candidate
			break
		}
	}
	if matched == nil {
		return nil, "invalid_token"
	}

	authCtx := &model.AuthContext{
		TokenID:     matched.ID,
		TokenPrefix: matched.TokenPrefix,
		UserID:      matched.UserID,
		Scopes:      matched.Scopes,
	}
	_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)

	// last_used_at is best-effort and detached from the request context
	// so the write survives the response.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cfg.Repository.UpdateAccessTokenLastUsed(ctx, matched.ID)
	}()

	return authCtx, "db"
}

// extractAccessToken reads the token from "Authorization: Bearer" or,
// failing that, the X-Access-Token header.
func extractAccessToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
	}
	return r.Header.Get("X-Access-Token")
}

// writeAuthError writes the single 401 body used for every auth failure
// so callers cannot enumerate tokens.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Invalid or missing access token","code":"UNAUTHORIZED"}`))
}
