package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/middleware"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/service"
	"github.com/pixelift/pixelift/internal/transform"
)

// ImageHandler handles HTTP requests for image records and the gallery.
type ImageHandler struct {
	svc    *service.ImageService
	logger *slog.Logger
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(svc *service.ImageService, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/images.
func (h *ImageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.SaveImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := validateSaveImageRequest(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	img, err := h.svc.CreateImage(r.Context(), recordFromRequest(&req, ""), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("image_created",
		"image_id", img.ID,
		"kind", string(img.Kind),
		"user_id", userID,
	)

	gi, err := h.svc.GetImage(r.Context(), img.ID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToImageResponse(gi))
}

// Get handles GET /api/v1/images/{id}.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ID", "Image ID is required")
		return
	}

	gi, err := h.svc.GetImage(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToImageResponse(gi))
}

// List handles GET /api/v1/images.
// Query parameters: page, page_size, query (free-text search), mine=true
// to restrict to the caller's images.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListGalleryInput{
		Page:     1,
		PageSize: service.DefaultPageSize,
		Query:    query.Get("query"),
	}
	if p := query.Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			input.Page = parsed
		}
	}
	if ps := query.Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			input.PageSize = parsed
		}
	}
	if query.Get("mine") == "true" {
		input.OwnerID = auth.UserIDFromContext(r.Context())
	}

	if err := middleware.ValidateSearchQuery(input.Query); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	page, err := h.svc.ListGallery(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToGalleryResponse(page))
}

// Update handles PATCH /api/v1/images/{id}.
func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ID", "Image ID is required")
		return
	}

	var req dto.SaveImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	img, err := h.svc.UpdateImage(r.Context(), recordFromRequest(&req, id), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("image_updated",
		"image_id", img.ID,
		"user_id", userID,
	)

	gi, err := h.svc.GetImage(r.Context(), img.ID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToImageResponse(gi))
}

// Delete handles DELETE /api/v1/images/{id}.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ID", "Image ID is required")
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	if err := h.svc.DeleteImage(r.Context(), id, userID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("image_deleted", "image_id", id, "user_id", userID)

	w.WriteHeader(http.StatusNoContent)
}

// recordFromRequest maps a save request onto a record for the service.
func recordFromRequest(req *dto.SaveImageRequest, id string) transform.Record {
	return transform.Record{
		ID:                id,
		Title:             req.Title,
		Kind:              model.TransformationKind(req.Kind),
		PublicID:          req.PublicID,
		SecureURL:         req.SecureURL,
		TransformationURL: req.TransformationURL,
		Width:             req.Width,
		Height:            req.Height,
		AspectRatio:       req.AspectRatio,
		Color:             req.Color,
		Prompt:            req.Prompt,
	}
}

// validateSaveImageRequest runs transport-level input checks.
func validateSaveImageRequest(req *dto.SaveImageRequest) error {
	if err := middleware.ValidateTitle(req.Title); err != nil {
		return err
	}
	if err := middleware.ValidatePublicID(req.PublicID); err != nil {
		return err
	}
	if err := middleware.ValidatePrompt(req.Prompt); err != nil {
		return err
	}
	return middleware.ValidateColor(req.Color)
}

// handleServiceError maps service errors to HTTP responses.
func (h *ImageHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrImageNotFound):
		h.writeError(w, http.StatusNotFound, "IMAGE_NOT_FOUND", "Image not found")
	case errors.Is(err, service.ErrNotOwner):
		h.writeError(w, http.StatusForbidden, "NOT_OWNER", "You do not own this image")
	case errors.Is(err, service.ErrValidation):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, service.ErrUpstream):
		h.writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Media provider is unavailable")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *ImageHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
