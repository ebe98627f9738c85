package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/identity"
	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/service"
)

// maxWebhookBodySize bounds inbound webhook payloads.
const maxWebhookBodySize = 1 << 20 // 1MB

// IdentityWebhookHandler receives user lifecycle events from the identity
// provider and mirrors them into the local user store.
type IdentityWebhookHandler struct {
	verifier *identity.Verifier
	users    *service.UserService
	client   *identity.Client // optional metadata write-back
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewIdentityWebhookHandler creates a new IdentityWebhookHandler.
// The identity client may be nil; metadata write-back is then skipped.
func NewIdentityWebhookHandler(verifier *identity.Verifier, users *service.UserService, client *identity.Client, recorder metrics.Recorder, logger *slog.Logger) *IdentityWebhookHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &IdentityWebhookHandler{
		verifier: verifier,
		users:    users,
		client:   client,
		metrics:  recorder,
		logger:   logger,
	}
}

// Handle processes POST /api/webhooks/identity.
func (h *IdentityWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		h.reject(w, "PAYLOAD_UNREADABLE", "Could not read request body")
		return
	}

	err = h.verifier.Verify(
		r.Header.Get(identity.HeaderID),
		r.Header.Get(identity.HeaderTimestamp),
		r.Header.Get(identity.HeaderSignature),
		payload,
	)
	if err != nil {
		h.metrics.IncWebhookProcessed("identity", "rejected")
		h.logger.Warn("identity webhook rejected",
			"reason", err.Error(),
			"ip", r.RemoteAddr,
		)
		h.reject(w, "INVALID_SIGNATURE", "Webhook signature verification failed")
		return
	}

	event, err := identity.ParseEvent(payload)
	if err != nil {
		h.metrics.IncWebhookProcessed("identity", "rejected")
		h.reject(w, "UNSUPPORTED_EVENT", "Unsupported or malformed event")
		return
	}

	if err := h.dispatch(r.Context(), event); err != nil {
		switch {
		case errors.Is(err, identity.ErrMissingField), errors.Is(err, service.ErrValidation):
			h.metrics.IncWebhookProcessed("identity", "rejected")
			h.reject(w, "MISSING_FIELD", "Event is missing required fields")
		case errors.Is(err, service.ErrUserNotFound):
			// The provider may replay deletes for users never mirrored here.
			h.metrics.IncWebhookProcessed("identity", "skipped")
			writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
		default:
			h.metrics.IncWebhookProcessed("identity", "failed")
			h.logger.Error("identity webhook processing failed",
				"event", event.Type,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
				Error: "Failed to process event",
				Code:  "INTERNAL_ERROR",
			})
		}
		return
	}

	h.metrics.IncWebhookProcessed("identity", "processed")
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (h *IdentityWebhookHandler) dispatch(ctx context.Context, event *identity.Event) error {
	switch event.Type {
	case identity.EventUserCreated:
		data, err := identity.ParseUserData(event)
		if err != nil {
			return err
		}
		user, err := h.users.CreateUser(ctx, service.CreateUserInput{
			ProviderID: data.ID,
			Email:      data.PrimaryEmail(),
			Username:   data.Username,
			FirstName:  data.FirstName,
			LastName:   data.LastName,
			PhotoURL:   data.ImageURL,
		})
		if err != nil {
			if errors.Is(err, service.ErrUserExists) {
				// Replayed delivery; the user is already mirrored.
				return nil
			}
			return err
		}

		h.logger.Info("user mirrored from identity provider",
			"user_id", user.ID,
			"provider_id", data.ID,
		)

		// Echo our id into the provider's user metadata so client sessions
		// can carry it. Best effort; a failure here must not fail the event.
		if h.client != nil {
			go func(providerID, userID string) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := h.client.SetUserMetadata(ctx, providerID, userID); err != nil {
					h.logger.Warn("metadata write-back failed",
						"provider_id", providerID,
						"error", err,
					)
				}
			}(data.ID, user.ID)
		}
		return nil

	case identity.EventUserUpdated:
		data, err := identity.ParseUserData(event)
		if err != nil {
			return err
		}
		_, err = h.users.UpdateUser(ctx, service.UpdateUserInput{
			ProviderID: data.ID,
			Email:      data.PrimaryEmail(),
			Username:   data.Username,
			FirstName:  data.FirstName,
			LastName:   data.LastName,
			PhotoURL:   data.ImageURL,
		})
		return err

	case identity.EventUserDeleted:
		data, err := identity.ParseUserData(event)
		if err != nil {
			return err
		}
		return h.users.DeleteUser(ctx, data.ID)

	default:
		return identity.ErrUnsupportedEvent
	}
}

func (h *IdentityWebhookHandler) reject(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
