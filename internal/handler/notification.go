package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/notify"
)

const (
	maxEndpointsPerUser = 10
	maxDeliveryPageSize = 100
)

// NotificationHandler handles outbound notification endpoint management.
type NotificationHandler struct {
	logger *slog.Logger
	repo   *notify.Repository
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(logger *slog.Logger, repo *notify.Repository) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
		repo:   repo,
	}
}

// CreateEndpoint handles POST /api/v1/notifications/endpoints.
func (h *NotificationHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeNotifyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.CreateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeNotifyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := notify.ValidateTargetURL(req.TargetURL); err != nil {
		writeNotifyError(w, http.StatusBadRequest, "INVALID_TARGET_URL", err.Error())
		return
	}

	eventTypes, ok := parseEventTypes(req.EventTypes)
	if !ok {
		writeNotifyError(w, http.StatusBadRequest, "INVALID_EVENT_TYPE",
			"Unknown event type. Valid types: image.created, image.updated, image.deleted, transformation.applied")
		return
	}

	existing, err := h.repo.ListEndpointsByUser(ctx, authCtx.UserID)
	if err != nil {
		h.logger.Error("failed to list endpoints", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create endpoint")
		return
	}
	if len(existing) >= maxEndpointsPerUser {
		writeNotifyError(w, http.StatusUnprocessableEntity, "ENDPOINT_LIMIT_REACHED",
			"Maximum number of notification endpoints reached")
		return
	}

	secret, err := notify.GenerateSecret()
	if err != nil {
		h.logger.Error("failed to generate signing secret", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create endpoint")
		return
	}

	now := time.Now().UTC()
	endpoint := &model.WebhookEndpoint{
		ID:            ulid.Make().String(),
		UserID:        authCtx.UserID,
		TargetURL:     req.TargetURL,
		SigningSecret: secret,
		Enabled:       true,
		EventTypes:    eventTypes,
		Name:          req.Name,
		Description:   req.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.repo.CreateEndpoint(ctx, endpoint); err != nil {
		h.logger.Error("failed to create endpoint", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create endpoint")
		return
	}

	h.logger.Info("notification endpoint created",
		slog.String("endpoint_id", endpoint.ID),
		slog.String("user_id", authCtx.UserID),
		slog.String("target_host", notify.ExtractHost(endpoint.TargetURL)),
	)

	// The signing secret is returned once and never again.
	writeJSON(w, http.StatusCreated, dto.EndpointCreatedResponse{
		EndpointResponse: dto.ToEndpointResponse(endpoint),
		SigningSecret:    secret,
	})
}

// ListEndpoints handles GET /api/v1/notifications/endpoints.
func (h *NotificationHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeNotifyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	endpoints, err := h.repo.ListEndpointsByUser(ctx, authCtx.UserID)
	if err != nil {
		h.logger.Error("failed to list endpoints", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list endpoints")
		return
	}

	responses := make([]dto.EndpointResponse, 0, len(endpoints))
	for _, e := range endpoints {
		responses = append(responses, dto.ToEndpointResponse(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{"endpoints": responses})
}

// GetEndpoint handles GET /api/v1/notifications/endpoints/{endpoint_id}.
func (h *NotificationHandler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeNotifyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	endpoint, ok := h.ownedEndpoint(w, r, authCtx.UserID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, dto.ToEndpointResponse(endpoint))
}

// UpdateEndpoint handles PATCH /api/v1/notifications/endpoints/{endpoint_id}.
func (h *NotificationHandler) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeNotifyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	endpoint, ok := h.ownedEndpoint(w, r, authCtx.UserID)
	if !ok {
		return
	}

	var req dto.UpdateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeNotifyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if req.TargetURL != nil {
		if err := notify.ValidateTargetURL(*req.TargetURL); err != nil {
			writeNotifyError(w, http.StatusBadRequest, "INVALID_TARGET_URL", err.Error())
			return
		}
		endpoint.TargetURL = *req.TargetURL
	}
	if req.EventTypes != nil {
		eventTypes, valid := parseEventTypes(*req.EventTypes)
		if !valid {
			writeNotifyError(w, http.StatusBadRequest, "INVALID_EVENT_TYPE",
				"Unknown event type. Valid types: image.created, image.updated, image.deleted, transformation.applied")
			return
		}
		endpoint.EventTypes = eventTypes
	}
	if req.Enabled != nil {
		endpoint.Enabled = *req.Enabled
	}
	if req.Name != nil {
		endpoint.Name = *req.Name
	}
	if req.Description != nil {
		endpoint.Description = *req.Description
	}

	if err := h.repo.UpdateEndpoint(ctx, endpoint); err != nil {
		if errors.Is(err, notify.ErrEndpointNotFound) {
			writeNotifyError(w, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Notification endpoint not found")
			return
		}
		h.logger.Error("failed to update endpoint", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update endpoint")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToEndpointResponse(endpoint))
}

// DeleteEndpoint handles DELETE /api/v1/notifications/endpoints/{endpoint_id}.
func (h *NotificationHandler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeNotifyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	endpoint, ok := h.ownedEndpoint(w, r, authCtx.UserID)
	if !ok {
		return
	}

	if err := h.repo.DeleteEndpoint(ctx, endpoint.ID); err != nil {
		h.logger.Error("failed to delete endpoint", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete endpoint")
		return
	}

	h.logger.Info("notification endpoint deleted",
		slog.String("endpoint_id", endpoint.ID),
		slog.String("user_id", authCtx.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// RotateSecret handles POST /api/v1/notifications/endpoints/{endpoint_id}/rotate.
func (h *NotificationHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeNotifyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	endpoint, ok := h.ownedEndpoint(w, r, authCtx.UserID)
	if !ok {
		return
	}

	secret, err := notify.GenerateSecret()
	if err != nil {
		h.logger.Error("failed to generate signing secret", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate secret")
		return
	}

	if err := h.repo.UpdateEndpointSecret(ctx, endpoint.ID, secret); err != nil {
		h.logger.Error("failed to rotate signing secret", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate secret")
		return
	}

	h.logger.Info("notification signing secret rotated",
		slog.String("endpoint_id", endpoint.ID),
		slog.String("user_id", authCtx.UserID),
	)

	writeJSON(w, http.StatusOK, dto.EndpointCreatedResponse{
		EndpointResponse: dto.ToEndpointResponse(endpoint),
		SigningSecret:    secret,
	})
}

// ListDeliveries handles GET /api/v1/notifications/endpoints/{endpoint_id}/deliveries.
func (h *NotificationHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeNotifyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	endpoint, ok := h.ownedEndpoint(w, r, authCtx.UserID)
	if !ok {
		return
	}

	limit := parsePositiveInt(r.URL.Query().Get("limit"), 20)
	if limit > maxDeliveryPageSize {
		limit = maxDeliveryPageSize
	}
	offset := parsePositiveInt(r.URL.Query().Get("offset"), 0)

	var statuses []string
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = []string{s}
	}

	deliveries, total, err := h.repo.ListDeliveriesByEndpoint(ctx, endpoint.ID, statuses, limit, offset)
	if err != nil {
		h.logger.Error("failed to list deliveries", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list deliveries")
		return
	}

	responses := make([]dto.DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		responses = append(responses, dto.ToDeliveryResponse(d))
	}

	writeJSON(w, http.StatusOK, dto.DeliveryListResponse{
		Deliveries: responses,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	})
}

// RetryDelivery handles POST /api/v1/notifications/deliveries/{delivery_id}/retry.
// Only exhausted deliveries can be requeued.
func (h *NotificationHandler) RetryDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeNotifyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	deliveryID := chi.URLParam(r, "delivery_id")
	if deliveryID == "" {
		writeNotifyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Delivery ID is required")
		return
	}

	delivery, endpoint, err := h.repo.GetDeliveryWithEndpoint(ctx, deliveryID)
	if err != nil || endpoint.UserID != authCtx.UserID {
		writeNotifyError(w, http.StatusNotFound, "DELIVERY_NOT_FOUND", "Delivery not found")
		return
	}

	if err := h.repo.ResetDeliveryForRetry(ctx, delivery.ID); err != nil {
		if errors.Is(err, notify.ErrDeliveryNotFound) {
			writeNotifyError(w, http.StatusConflict, "DELIVERY_NOT_RETRYABLE",
				"Only exhausted deliveries can be retried")
			return
		}
		h.logger.Error("failed to reset delivery", slog.String("error", err.Error()))
		writeNotifyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retry delivery")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ownedEndpoint loads the endpoint from the URL and verifies ownership.
// Foreign endpoints return not-found to prevent enumeration.
func (h *NotificationHandler) ownedEndpoint(w http.ResponseWriter, r *http.Request, userID string) (*model.WebhookEndpoint, bool) {
	endpointID := chi.URLParam(r, "endpoint_id")
	if endpointID == "" {
		writeNotifyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Endpoint ID is required")
		return nil, false
	}

	endpoint, err := h.repo.GetEndpoint(r.Context(), endpointID)
	if err != nil || endpoint.UserID != userID {
		writeNotifyError(w, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Notification endpoint not found")
		return nil, false
	}

	return endpoint, true
}

func parseEventTypes(raw []string) ([]model.EventType, bool) {
	if len(raw) == 0 {
		// Default to all event types.
		return append([]model.EventType(nil), model.ValidEventTypes...), true
	}

	eventTypes := make([]model.EventType, 0, len(raw))
	for _, s := range raw {
		et := model.EventType(s)
		if !model.IsValidEventType(et) {
			return nil, false
		}
		eventTypes = append(eventTypes, et)
	}
	return eventTypes, true
}

func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// writeNotifyError writes a JSON error response.
func writeNotifyError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
