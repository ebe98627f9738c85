// Package analytics provides transformation usage event capture and processing.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/model"
)

const (
	// StreamKey is the Redis stream for usage events.
	StreamKey = "stream:usage_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:usage_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// UsageEventPayload is the compressed event format for the Redis stream.
type UsageEventPayload struct {
	UserID    string `json:"uid"`           // user_id
	ImageID   string `json:"iid,omitempty"` // image_id, empty for unsaved sessions
	SessionID string `json:"sid"`           // transform session id
	Kind      string `json:"k"`             // transformation kind
	Credits   int    `json:"c"`             // credits debited
	RenderMs  int64  `json:"rms,omitempty"` // provider render duration
	AppliedAt int64  `json:"t"`             // Unix milliseconds
}

// NewUsageEvent builds a stream payload for an applied transformation.
// Render durations below one millisecond are rounded up so a fast
// provider response still shows up in the rollups.
func NewUsageEvent(userID, imageID, sessionID string, kind model.TransformationKind, credits int, renderDuration time.Duration, appliedAt time.Time) UsageEventPayload {
	renderMs := renderDuration.Milliseconds()
	if renderMs == 0 && renderDuration > 0 {
		renderMs = 1
	}
	return UsageEventPayload{
		UserID:    userID,
		ImageID:   imageID,
		SessionID: sessionID,
		Kind:      string(kind),
		Credits:   credits,
		RenderMs:  renderMs,
		AppliedAt: appliedAt.UnixMilli(),
	}
}

// Publisher enqueues usage events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new usage event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds a usage event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event UsageEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event UsageEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish usage event",
				"session_id", event.SessionID,
				"kind", event.Kind,
				"error", err,
			)
			p.metrics.IncUsageEventPublished("dropped")
			return
		}

		p.logger.Debug("usage event published",
			"session_id", event.SessionID,
			"kind", event.Kind,
			"stream_id", streamID,
		)
		p.metrics.IncUsageEventPublished("success")
	}()
}
