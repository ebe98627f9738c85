package dto

import (
	"time"

	"github.com/pixelift/pixelift/internal/model"
)

// CreateTokenRequest represents the request body for creating an access token.
type CreateTokenRequest struct {
	Name   string   `json:"name,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// TokenCreatedResponse carries a freshly issued token.
// The plaintext token is shown exactly once.
type TokenCreatedResponse struct {
	ID          string    `json:"id"`
	Token       string    `json:"token"`
	Name        string    `json:"name,omitempty"`
	TokenPrefix string    `json:"token_prefix"`
	Scopes      []string  `json:"scopes"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenResponse represents an access token without its secret.
type TokenResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	TokenPrefix string     `json:"token_prefix"`
	Scopes      []string   `json:"scopes"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TokenRotatedResponse pairs the revoked token with its replacement.
type TokenRotatedResponse struct {
	OldTokenID        string               `json:"old_token_id"`
	OldTokenRevokedAt time.Time            `json:"old_token_revoked_at"`
	NewToken          TokenCreatedResponse `json:"new_token"`
}

// ToTokenResponse converts an AccessToken model to a TokenResponse DTO.
func ToTokenResponse(t *model.AccessToken) TokenResponse {
	return TokenResponse{
		ID:          t.ID,
		Name:        t.Name,
		TokenPrefix: t.TokenPrefix,
		Scopes:      t.Scopes,
		RevokedAt:   t.RevokedAt,
		LastUsedAt:  t.LastUsedAt,
		CreatedAt:   t.CreatedAt,
	}
}
