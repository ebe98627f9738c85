package identity

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event types delivered by the identity provider.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

var (
	// ErrUnsupportedEvent is returned for event types we do not handle.
	ErrUnsupportedEvent = errors.New("unsupported event type")
	// ErrMissingField is returned when a required payload field is absent.
	ErrMissingField = errors.New("missing required field")
)

// Event is the envelope of an identity webhook payload.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UserData carries the provider's user representation.
type UserData struct {
	ID             string         `json:"id"`
	Username       string         `json:"username"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	ImageURL       string         `json:"image_url"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
}

// EmailAddress is one entry of the provider's email list.
type EmailAddress struct {
	EmailAddress string `json:"email_address"`
}

// PrimaryEmail returns the first email address, or empty when none.
func (u *UserData) PrimaryEmail() string {
	if len(u.EmailAddresses) == 0 {
		return ""
	}
	return u.EmailAddresses[0].EmailAddress
}

// ParseEvent decodes a verified webhook payload into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	switch evt.Type {
	case EventUserCreated, EventUserUpdated, EventUserDeleted:
		return &evt, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, evt.Type)
}

// ParseUserData decodes the event data section and validates required fields.
// user.deleted events only carry the provider ID.
func ParseUserData(evt *Event) (*UserData, error) {
	var data UserData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return nil, fmt.Errorf("decode user data: %w", err)
	}
	if data.ID == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingField)
	}
	if evt.Type == EventUserCreated && data.PrimaryEmail() == "" {
		return nil, fmt.Errorf("%w: email_addresses", ErrMissingField)
	}
	return &data, nil
}
