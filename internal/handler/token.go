package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/repository"
)

// TokenHandler handles access token management endpoints.
type TokenHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(logger *slog.Logger, repo *repository.Repository) *TokenHandler {
	return &TokenHandler{
		logger:     logger,
		repository: repo,
	}
}

// Create handles POST /api/v1/tokens.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeTokenError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTokenError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	// Validate scopes
	for _, scope := range req.Scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			writeTokenError(w, http.StatusBadRequest, "INVALID_SCOPE",
				"Invalid scope: "+scope+". Valid scopes: read, write, admin")
			return
		}
	}

	// Default to read scope if none provided
	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeRead}
	}

	generated, err := auth.GenerateAccessToken(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate access token", slog.String("error", err.Error()))
		writeTokenError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate access token")
		return
	}

	token := &model.AccessToken{
		ID:          ulid.Make().String(),
		UserID:      authCtx.UserID,
		TokenHash:   generated.Hash,
		TokenPrefix: generated.Prefix,
		Scopes:      req.Scopes,
		Name:        req.Name,
		CreatedAt:   time.Now(),
	}

	if err := h.repository.CreateAccessToken(ctx, token); err != nil {
		h.logger.Error("failed to create access token", slog.String("error", err.Error()))
		writeTokenError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create access token")
		return
	}

	h.logger.Info("access token created",
		slog.String("token_id", token.ID),
		slog.String("token_prefix", token.TokenPrefix),
		slog.String("user_id", token.UserID),
	)

	// The plaintext token is returned once and never stored.
	writeJSON(w, http.StatusCreated, dto.TokenCreatedResponse{
		ID:          token.ID,
		Token:       generated.Plaintext,
		Name:        token.Name,
		TokenPrefix: token.TokenPrefix,
		Scopes:      token.Scopes,
		CreatedAt:   token.CreatedAt,
	})
}

// List handles GET /api/v1/tokens.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeTokenError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	tokens, err := h.repository.ListAccessTokensByUserID(ctx, authCtx.UserID)
	if err != nil {
		h.logger.Error("failed to list access tokens", slog.String("error", err.Error()))
		writeTokenError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list access tokens")
		return
	}

	responses := make([]dto.TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		responses = append(responses, dto.ToTokenResponse(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{"tokens": responses})
}

// Revoke handles DELETE /api/v1/tokens/{token_id}.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeTokenError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	tokenID := chi.URLParam(r, "token_id")
	if tokenID == "" {
		writeTokenError(w, http.StatusBadRequest, "INVALID_REQUEST", "Token ID is required")
		return
	}

	// Ownership check; not-found for foreign tokens to prevent enumeration.
	token, err := h.repository.GetAccessTokenByID(ctx, tokenID)
	if err != nil || token.UserID != authCtx.UserID || token.IsRevoked() {
		writeTokenError(w, http.StatusNotFound, "TOKEN_NOT_FOUND", "Access token not found or already revoked")
		return
	}

	if err := h.repository.RevokeAccessToken(ctx, tokenID); err != nil {
		h.logger.Error("failed to revoke access token", slog.String("error", err.Error()))
		writeTokenError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke access token")
		return
	}

	h.logger.Info("access token revoked",
		slog.String("token_id", tokenID),
		slog.String("user_id", authCtx.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// Rotate handles POST /api/v1/tokens/{token_id}/rotate.
func (h *TokenHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeTokenError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	tokenID := chi.URLParam(r, "token_id")
	if tokenID == "" {
		writeTokenError(w, http.StatusBadRequest, "INVALID_REQUEST", "Token ID is required")
		return
	}

	oldToken, err := h.repository.GetAccessTokenByID(ctx, tokenID)
	if err != nil || oldToken.UserID != authCtx.UserID || oldToken.IsRevoked() {
		writeTokenError(w, http.StatusNotFound, "TOKEN_NOT_FOUND", "Access token not found or already revoked")
		return
	}

	generated, err := auth.GenerateAccessToken(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate access token", slog.String("error", err.Error()))
		writeTokenError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate access token")
		return
	}

	now := time.Now()
	newToken := &model.AccessToken{
		ID:          ulid.Make().String(),
		UserID:      oldToken.UserID,
		TokenHash:   generated.Hash,
		TokenPrefix: generated.Prefix,
		Scopes:      oldToken.Scopes,
		Name:        oldToken.Name,
		CreatedAt:   now,
	}

	// Create the replacement first so the user is never left without a token.
	if err := h.repository.CreateAccessToken(ctx, newToken); err != nil {
		h.logger.Error("failed to create rotated access token", slog.String("error", err.Error()))
		writeTokenError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate access token")
		return
	}

	if err := h.repository.RevokeAccessToken(ctx, oldToken.ID); err != nil {
		h.logger.Error("failed to revoke old access token during rotation", slog.String("error", err.Error()))
		// Continue - the new token is already created
	}

	h.logger.Info("access token rotated",
		slog.String("old_token_id", oldToken.ID),
		slog.String("new_token_id", newToken.ID),
		slog.String("user_id", authCtx.UserID),
	)

	writeJSON(w, http.StatusCreated, dto.TokenRotatedResponse{
		OldTokenID:        oldToken.ID,
		OldTokenRevokedAt: now,
		NewToken: dto.TokenCreatedResponse{
			ID:          newToken.ID,
			Token:       generated.Plaintext,
			Name:        newToken.Name,
			TokenPrefix: newToken.TokenPrefix,
			Scopes:      newToken.Scopes,
			CreatedAt:   newToken.CreatedAt,
		},
	})
}

// writeTokenError writes a JSON error response.
func writeTokenError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
