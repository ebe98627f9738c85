package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/model"
)

// AdminUserReader defines the interface for user lookups.
type AdminUserReader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByProviderID(ctx context.Context, providerID string) (*model.User, error)
}

// AdminTokenLister defines the interface for listing access tokens.
type AdminTokenLister interface {
	ListAccessTokensByUserID(ctx context.Context, userID string) ([]*model.AccessToken, error)
}

// AdminHandler provides admin-only endpoints for debugging and operations.
type AdminHandler struct {
	userRepo  AdminUserReader
	tokenRepo AdminTokenLister
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(userRepo AdminUserReader, tokenRepo AdminTokenLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		logger:    logger,
	}
}

// AdminUserResponse represents a user in admin context with extended info.
type AdminUserResponse struct {
	ID            string    `json:"id"`
	ProviderID    string    `json:"provider_id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Plan          string    `json:"plan"`
	CreditBalance int       `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LookupUser handles GET /api/v1/admin/users?q={id|provider_id}
// Resolves by internal ID first, then by identity-provider ID.
func (h *AdminHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_QUERY", "query parameter 'q' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.userRepo.GetUserByID(ctx, query)
	if err != nil {
		user, err = h.userRepo.GetUserByProviderID(ctx, query)
	}
	if err != nil {
		writeErrorJSON(w, http.StatusNotFound, "USER_NOT_FOUND", "no user matches the query")
		return
	}

	writeJSON(w, http.StatusOK, AdminUserResponse{
		ID:            user.ID,
		ProviderID:    user.ProviderID,
		Email:         user.Email,
		Username:      user.Username,
		Plan:          string(user.Plan),
		CreditBalance: user.CreditBalance,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	})
}

// AdminTokenListResponse represents the response for token listing.
type AdminTokenListResponse struct {
	Tokens []dto.TokenResponse `json:"tokens"`
	Total  int                 `json:"total"`
}

// ListTokensByUser handles GET /api/v1/admin/tokens?user_id={id}
// Lists all access tokens for a specific user (admin only).
func (h *AdminHandler) ListTokensByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_USER_ID", "query parameter 'user_id' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tokens, err := h.tokenRepo.ListAccessTokensByUserID(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list access tokens",
			"error", err,
			"user_id", userID,
		)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list access tokens")
		return
	}

	response := AdminTokenListResponse{
		Tokens: make([]dto.TokenResponse, 0, len(tokens)),
		Total:  len(tokens),
	}

	for _, token := range tokens {
		response.Tokens = append(response.Tokens, dto.ToTokenResponse(token))
	}

	writeJSON(w, http.StatusOK, response)
}

// StatsResponse represents operational statistics.
type StatsResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime,omitempty"`
}

// Stats handles GET /api/v1/admin/stats
// Returns basic operational statistics.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Timestamp: time.Now().UTC(),
		Service:   "pixelift",
		Version:   "1.0.0",
	}
	writeJSON(w, http.StatusOK, response)
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
