package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/service"
)

// UserHandler handles profile and purchase endpoints for the
// authenticated user.
type UserHandler struct {
	users        *service.UserService
	transactions *service.TransactionService
	logger       *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, transactions *service.TransactionService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:        users,
		transactions: transactions,
		logger:       logger,
	}
}

// Me handles GET /api/v1/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToProfileResponse(user))
}

// Checkout handles POST /api/v1/checkout.
func (h *UserHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	session, err := h.transactions.Checkout(r.Context(), req.Plan, userID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPlan) {
			h.writeError(w, http.StatusBadRequest, "UNKNOWN_PLAN", "Unknown credit plan")
			return
		}
		h.logger.Error("checkout failed", "error", err, "user_id", userID)
		h.writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Payment provider is unavailable")
		return
	}

	h.logger.Info("checkout_started",
		"session_id", session.ID,
		"plan", req.Plan,
		"user_id", userID,
	)

	writeJSON(w, http.StatusCreated, dto.CheckoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}

// Purchases handles GET /api/v1/me/purchases.
func (h *UserHandler) Purchases(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	txs, err := h.transactions.ListPurchases(r.Context(), userID, 20)
	if err != nil {
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": dto.ToTransactionResponses(txs),
	})
}

func (h *UserHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
