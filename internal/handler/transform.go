package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/pixelift/pixelift/internal/analytics"
	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/middleware"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/service"
	"github.com/pixelift/pixelift/internal/transform"
)

// usagePublisher records applied transformations, fire-and-forget.
type usagePublisher interface {
	PublishAsync(event analytics.UsageEventPayload)
}

// eventNotifier fans transformation events out to the user's registered
// notification endpoints. *notify.Publisher satisfies it.
type eventNotifier interface {
	Publish(ctx context.Context, userID string, eventType model.EventType, data map[string]any) error
}

// TransformHandler handles the interactive transformation session endpoints.
type TransformHandler struct {
	registry *transform.Registry
	ledger   transform.Ledger
	renderer transform.Renderer
	store    transform.Store
	images   *service.ImageService
	usage    usagePublisher
	notifier eventNotifier
	metrics  metrics.Recorder
	fee      int
	debounce time.Duration
	logger   *slog.Logger
}

// TransformHandlerConfig wires the handler's collaborators.
type TransformHandlerConfig struct {
	Registry *transform.Registry
	Ledger   transform.Ledger
	Renderer transform.Renderer
	Store    transform.Store
	Images   *service.ImageService
	Usage    usagePublisher   // optional
	Notifier eventNotifier    // optional
	Metrics  metrics.Recorder // optional
	Fee      int
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewTransformHandler creates a new TransformHandler.
func NewTransformHandler(cfg TransformHandlerConfig) *TransformHandler {
	if cfg.Fee <= 0 {
		cfg.Fee = 1
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = transform.DefaultDebounce
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &TransformHandler{
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		renderer: cfg.Renderer,
		store:    cfg.Store,
		images:   cfg.Images,
		usage:    cfg.Usage,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		fee:      cfg.Fee,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
}

// Start handles POST /api/v1/transform/sessions.
// Starting a session for an existing image seeds the form from the stored
// record so the user resumes where they left off.
func (h *TransformHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	kind := model.TransformationKind(req.Kind)
	session, err := transform.NewSession(kind, h.debounce)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_KIND", "Unknown transformation type")
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	wf := transform.NewWorkflow(transform.WorkflowConfig{
		ID:       ulid.Make().String(),
		UserID:   userID,
		Fee:      h.fee,
		Session:  session,
		Ledger:   h.ledger,
		Renderer: h.renderer,
		Store:    h.store,
		ImageID:  req.ImageID,
	})

	if req.ImageID != "" {
		if err := h.seedFromImage(r, wf, req.ImageID, userID); err != nil {
			session.Close()
			h.handleWorkflowError(w, err)
			return
		}
	} else if req.PublicID != "" {
		if err := wf.AttachAsset(req.PublicID, req.SecureURL, req.Width, req.Height); err != nil {
			session.Close()
			h.handleWorkflowError(w, err)
			return
		}
	}

	h.registry.Put(wf)

	h.logger.Info("transform_session_started",
		"session_id", wf.ID(),
		"kind", string(kind),
		"user_id", userID,
	)

	writeJSON(w, http.StatusCreated, h.sessionResponse(wf))
}

// seedFromImage loads an existing record into the workflow.
func (h *TransformHandler) seedFromImage(r *http.Request, wf *transform.Workflow, imageID, userID string) error {
	gi, err := h.images.GetImage(r.Context(), imageID)
	if err != nil {
		return err
	}
	if gi.Image.OwnerID != userID {
		return service.ErrNotOwner
	}

	width, height := 0, 0
	if gi.Image.Width != nil {
		width = *gi.Image.Width
	}
	if gi.Image.Height != nil {
		height = *gi.Image.Height
	}
	if err := wf.AttachAsset(gi.Image.PublicID, gi.Image.SecureURL, width, height); err != nil {
		return err
	}

	if len(gi.Image.Config) > 0 {
		d, err := transform.Decode(gi.Image.Config)
		if err == nil {
			wf.Session().SeedActive(d)
		}
	}
	return nil
}

// EditField handles PATCH /api/v1/transform/sessions/{id}/field.
func (h *TransformHandler) EditField(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req dto.EditFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if err := middleware.ValidatePrompt(req.Value); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	if err := wf.EditField(req.Field, req.Value); err != nil {
		h.handleWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.sessionResponse(wf))
}

// SelectAspectRatio handles PUT /api/v1/transform/sessions/{id}/aspect-ratio.
func (h *TransformHandler) SelectAspectRatio(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req dto.SelectAspectRatioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := wf.SelectAspectRatio(req.AspectRatio); err != nil {
		h.handleWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.sessionResponse(wf))
}

// Apply handles POST /api/v1/transform/sessions/{id}/apply.
func (h *TransformHandler) Apply(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}

	kind := string(wf.Session().Kind())
	start := time.Now()
	url, err := wf.Apply(r.Context())
	if err != nil {
		if errors.Is(err, transform.ErrRender) {
			h.metrics.IncTransformationFailed(kind)
		}
		h.handleWorkflowError(w, err)
		return
	}
	h.metrics.IncTransformationApplied(kind)
	h.metrics.ObserveRenderDuration(time.Since(start))

	userID := auth.UserIDFromContext(r.Context())
	balance, balErr := h.ledger.Balance(r.Context(), userID)
	if balErr != nil {
		balance = -1
	}

	if h.usage != nil {
		h.usage.PublishAsync(analytics.NewUsageEvent(
			userID,
			wf.ImageID(),
			wf.ID(),
			wf.Session().Kind(),
			h.fee,
			time.Since(start),
			time.Now().UTC(),
		))
	}

	if h.notifier != nil {
		// A failed fan-out never fails the apply.
		_ = h.notifier.Publish(r.Context(), userID, model.EventTypeTransformationApplied, map[string]any{
			"session_id":          wf.ID(),
			"image_id":            wf.ImageID(),
			"transformation_type": string(wf.Session().Kind()),
			"rendered_url":        url,
		})
	}

	h.logger.Info("transformation_applied",
		"session_id", wf.ID(),
		"user_id", userID,
	)

	writeJSON(w, http.StatusOK, dto.ApplyResponse{
		State:       string(wf.State()),
		RenderedURL: url,
		Balance:     balance,
	})
}

// Save handles POST /api/v1/transform/sessions/{id}/save.
func (h *TransformHandler) Save(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req dto.SaveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	imageID, err := wf.Save(r.Context(), req.Title)
	if err != nil {
		h.handleWorkflowError(w, err)
		return
	}

	h.logger.Info("transform_session_saved",
		"session_id", wf.ID(),
		"image_id", imageID,
	)

	writeJSON(w, http.StatusOK, dto.SaveSessionResponse{
		State:   string(wf.State()),
		ImageID: imageID,
	})
}

// Get handles GET /api/v1/transform/sessions/{id}.
func (h *TransformHandler) Get(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(wf))
}

// Close handles DELETE /api/v1/transform/sessions/{id}.
func (h *TransformHandler) Close(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.registry.Remove(wf.ID())
	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the session id to the caller's workflow.
func (h *TransformHandler) lookup(w http.ResponseWriter, r *http.Request) (*transform.Workflow, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ID", "Session ID is required")
		return nil, false
	}
	userID := auth.UserIDFromContext(r.Context())
	wf, err := h.registry.Get(id, userID)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found")
		return nil, false
	}
	return wf, true
}

func (h *TransformHandler) sessionResponse(wf *transform.Workflow) dto.SessionResponse {
	return dto.SessionResponse{
		ID:          wf.ID(),
		Kind:        string(wf.Session().Kind()),
		State:       string(wf.State()),
		RenderedURL: wf.RenderedURL(),
		ImageID:     wf.ImageID(),
	}
}

// handleWorkflowError maps workflow and session errors to HTTP responses.
func (h *TransformHandler) handleWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transform.ErrInsufficientCredits):
		h.writeError(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "Not enough credits for this transformation")
	case errors.Is(err, transform.ErrNoSourceAsset):
		h.writeError(w, http.StatusConflict, "NO_SOURCE_ASSET", "Upload a source image first")
	case errors.Is(err, transform.ErrNothingStaged):
		h.writeError(w, http.StatusConflict, "NOTHING_STAGED", "No transformation changes to apply")
	case errors.Is(err, transform.ErrNotRendered):
		h.writeError(w, http.StatusConflict, "NOT_RENDERED", "Apply a transformation before saving")
	case errors.Is(err, transform.ErrApplyInProgress):
		h.writeError(w, http.StatusConflict, "IN_PROGRESS", "Another operation is in progress")
	case errors.Is(err, transform.ErrFieldNotEditable),
		errors.Is(err, transform.ErrNotFillKind),
		errors.Is(err, transform.ErrUnknownAspectRatio):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, transform.ErrSessionClosed):
		h.writeError(w, http.StatusGone, "SESSION_CLOSED", "Session has expired")
	case errors.Is(err, transform.ErrRender):
		h.writeError(w, http.StatusBadGateway, "RENDER_FAILED", "Media provider failed to render the transformation")
	case errors.Is(err, service.ErrImageNotFound):
		h.writeError(w, http.StatusNotFound, "IMAGE_NOT_FOUND", "Image not found")
	case errors.Is(err, service.ErrNotOwner):
		h.writeError(w, http.StatusForbidden, "NOT_OWNER", "You do not own this image")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

func (h *TransformHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
