package dto

import (
	"time"

	"github.com/pixelift/pixelift/internal/model"
)

// CreateEndpointRequest represents the request body for registering a
// notification endpoint.
type CreateEndpointRequest struct {
	TargetURL   string   `json:"target_url"`
	EventTypes  []string `json:"event_types,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
}

// UpdateEndpointRequest represents the request body for updating an endpoint.
// Nil fields are left unchanged.
type UpdateEndpointRequest struct {
	TargetURL   *string   `json:"target_url,omitempty"`
	EventTypes  *[]string `json:"event_types,omitempty"`
	Enabled     *bool     `json:"enabled,omitempty"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// EndpointCreatedResponse carries a freshly registered endpoint.
// The signing secret is shown exactly once.
type EndpointCreatedResponse struct {
	EndpointResponse
	SigningSecret string `json:"signing_secret"`
}

// EndpointResponse represents a notification endpoint without its secret.
type EndpointResponse struct {
	ID          string    `json:"id"`
	TargetURL   string    `json:"target_url"`
	Enabled     bool      `json:"enabled"`
	EventTypes  []string  `json:"event_types"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeliveryResponse represents a delivery attempt record.
type DeliveryResponse struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	EventType      string     `json:"event_type"`
	Status         string     `json:"status"`
	AttemptCount   int        `json:"attempt_count"`
	MaxAttempts    int        `json:"max_attempts"`
	NextRetryAt    time.Time  `json:"next_retry_at"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	LastHTTPStatus *int       `json:"last_http_status,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DeliveryListResponse is a paginated list of deliveries.
type DeliveryListResponse struct {
	Deliveries []DeliveryResponse `json:"deliveries"`
	Total      int                `json:"total"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// ToEndpointResponse converts a WebhookEndpoint model to a response DTO.
func ToEndpointResponse(e *model.WebhookEndpoint) EndpointResponse {
	eventTypes := make([]string, len(e.EventTypes))
	for i, et := range e.EventTypes {
		eventTypes[i] = string(et)
	}
	return EndpointResponse{
		ID:          e.ID,
		TargetURL:   e.TargetURL,
		Enabled:     e.Enabled,
		EventTypes:  eventTypes,
		Name:        e.Name,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// ToDeliveryResponse converts a WebhookDelivery model to a response DTO.
func ToDeliveryResponse(d *model.WebhookDelivery) DeliveryResponse {
	return DeliveryResponse{
		ID:             d.ID,
		EventID:        d.EventID,
		EventType:      string(d.EventType),
		Status:         string(d.Status),
		AttemptCount:   d.AttemptCount,
		MaxAttempts:    d.MaxAttempts,
		NextRetryAt:    d.NextRetryAt,
		LastAttemptAt:  d.LastAttemptAt,
		LastHTTPStatus: d.LastHTTPStatus,
		LastError:      d.LastError,
		CreatedAt:      d.CreatedAt,
	}
}
