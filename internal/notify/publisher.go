package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixelift/pixelift/internal/model"
)

// Publisher creates notification delivery records when events occur.
type Publisher struct {
	repo   *Repository
	logger *slog.Logger
}

// NewPublisher creates a new notification publisher.
func NewPublisher(repo *Repository, logger *slog.Logger) *Publisher {
	return &Publisher{
		repo:   repo,
		logger: logger.With("component", "notify.publisher"),
	}
}

// PublishImageEvent creates deliveries for an image lifecycle event.
func (p *Publisher) PublishImageEvent(ctx context.Context, eventType model.EventType, image *model.Image) error {
	return p.Publish(ctx, image.OwnerID, eventType, map[string]any{
		"image_id":            image.ID,
		"title":               image.Title,
		"transformation_type": string(image.Kind),
		"public_id":           image.PublicID,
		"secure_url":          image.SecureURL,
	})
}

// Publish creates deliveries for an event. It fans out to all active
// endpoints the user has subscribed to the event type. Failures are
// per-endpoint; one broken endpoint does not block the rest.
func (p *Publisher) Publish(ctx context.Context, userID string, eventType model.EventType, data map[string]any) error {
	endpoints, err := p.repo.ListActiveEndpointsByUserAndEvent(ctx, userID, eventType)
	if err != nil {
		return fmt.Errorf("list active endpoints: %w", err)
	}

	if len(endpoints) == 0 {
		return nil // No notifications configured
	}

	eventID := ulid.Make().String()
	payload := model.WebhookPayload{
		EventType: string(eventType),
		EventID:   eventID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now()
	for _, endpoint := range endpoints {
		delivery := &model.WebhookDelivery{
			ID:           ulid.Make().String(),
			EndpointID:   endpoint.ID,
			EventID:      eventID,
			EventType:    eventType,
			PayloadJSON:  string(payloadJSON),
			Status:       model.DeliveryStatusPending,
			AttemptCount: 0,
			MaxAttempts:  DefaultMaxAttempts,
			NextRetryAt:  now, // Immediate delivery
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := p.repo.CreateDelivery(ctx, delivery); err != nil {
			p.logger.Warn("failed to create delivery",
				"endpoint_id", endpoint.ID,
				"event_id", eventID,
				"error", err,
			)
			// Continue with other endpoints
			continue
		}

		p.logger.Debug("notification delivery created",
			"delivery_id", delivery.ID,
			"endpoint_id", endpoint.ID,
			"event_id", eventID,
			"event_type", string(eventType),
		)
	}

	return nil
}
