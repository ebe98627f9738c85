package model

import (
	"slices"
	"time"
)

// EventType names an outbound notification event.
type EventType string

const (
	EventTypeImageCreated          EventType = "image.created"
	EventTypeImageUpdated          EventType = "image.updated"
	EventTypeImageDeleted          EventType = "image.deleted"
	EventTypeTransformationApplied EventType = "transformation.applied"
)

// ValidEventTypes lists every event an endpoint may subscribe to.
var ValidEventTypes = []EventType{
	EventTypeImageCreated,
	EventTypeImageUpdated,
	EventTypeImageDeleted,
	EventTypeTransformationApplied,
}

// IsValidEventType reports whether et is a known event type.
func IsValidEventType(et EventType) bool {
	return slices.Contains(ValidEventTypes, et)
}

// DeliveryStatus tracks a webhook delivery through its lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSuccess   DeliveryStatus = "success"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusExhausted DeliveryStatus = "exhausted"
)

// WebhookEndpoint is a user-registered URL that receives signed event
// notifications.
type WebhookEndpoint struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	TargetURL string `json:"target_url"`
	// The signing secret is shown once at creation and rotation, then
	// only ever used server-side.
	SigningSecret string      `json:"-"`
	Enabled       bool        `json:"enabled"`
	EventTypes    []EventType `json:"event_types"`
	Name          string      `json:"name,omitempty"`
	Description   string      `json:"description,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	DeletedAt     *time.Time  `json:"-"`
}

// IsDeleted reports whether the endpoint is soft-deleted.
func (e *WebhookEndpoint) IsDeleted() bool {
	return e.DeletedAt != nil
}

// IsActive reports whether the endpoint should receive notifications.
func (e *WebhookEndpoint) IsActive() bool {
	return e.Enabled && !e.IsDeleted()
}

// SubscribesToEvent reports whether the endpoint asked for et.
func (e *WebhookEndpoint) SubscribesToEvent(et EventType) bool {
	return slices.Contains(e.EventTypes, et)
}

// WebhookDelivery records one event queued for one endpoint, across all
// of its attempts.
type WebhookDelivery struct {
	ID         string    `json:"id"`
	EndpointID string    `json:"endpoint_id"`
	EventID    string    `json:"event_id"`
	EventType  EventType `json:"event_type"`
	// The payload stays internal; the API exposes only delivery metadata.
	PayloadJSON    string         `json:"-"`
	Status         DeliveryStatus `json:"status"`
	AttemptCount   int            `json:"attempt_count"`
	MaxAttempts    int            `json:"max_attempts"`
	NextRetryAt    time.Time      `json:"next_retry_at,omitempty"`
	LastAttemptAt  *time.Time     `json:"last_attempt_at,omitempty"`
	LastHTTPStatus *int           `json:"last_http_status,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CanRetry reports whether the delivery has attempts left.
func (d *WebhookDelivery) CanRetry() bool {
	return d.Status == DeliveryStatusFailed && d.AttemptCount < d.MaxAttempts
}

// IsTerminal reports whether the delivery will never be attempted again.
func (d *WebhookDelivery) IsTerminal() bool {
	return d.Status == DeliveryStatusSuccess || d.Status == DeliveryStatusExhausted
}

// WebhookPayload is the body POSTed to notification endpoints.
type WebhookPayload struct {
	EventType string         `json:"event_type"`
	EventID   string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}
