// Package auth provides authentication utilities for access tokens.
package auth

import (
	"context"

	"github.com/pixelift/pixelift/internal/model"
)

// contextKey keeps the auth value private to this package.
type contextKey struct{}

var authKey contextKey

// ContextWithAuth returns a child context carrying the authenticated
// caller's identity.
func ContextWithAuth(ctx context.Context, auth *model.AuthContext) context.Context {
	return context.WithValue(ctx, authKey, auth)
}

// AuthFromContext returns the caller's identity, or nil for
// unauthenticated requests.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	auth, _ := ctx.Value(authKey).(*model.AuthContext)
	return auth
}

// MustAuthFromContext is AuthFromContext for handlers that only run
// behind the auth middleware; it panics when no identity is present.
func MustAuthFromContext(ctx context.Context) *model.AuthContext {
	auth := AuthFromContext(ctx)
	if auth == nil {
		panic("auth context missing; handler mounted outside the auth middleware")
	}
	return auth
}

// UserIDFromContext returns the authenticated user's ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.UserID
	}
	return ""
}

// TokenIDFromContext returns the authenticating token's ID, or "".
func TokenIDFromContext(ctx context.Context) string {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.TokenID
	}
	return ""
}
