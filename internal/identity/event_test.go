package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		payload  string
		wantType string
		wantErr  error
	}{
		{
			name:     "user created",
			payload:  `{"type":"user.created","data":{"id":"idp_1"}}`,
			wantType: EventUserCreated,
		},
		{
			name:     "user updated",
			payload:  `{"type":"user.updated","data":{"id":"idp_1"}}`,
			wantType: EventUserUpdated,
		},
		{
			name:     "user deleted",
			payload:  `{"type":"user.deleted","data":{"id":"idp_1"}}`,
			wantType: EventUserDeleted,
		},
		{
			name:    "session event unsupported",
			payload: `{"type":"session.created","data":{}}`,
			wantErr: ErrUnsupportedEvent,
		},
		{
			name:    "empty type",
			payload: `{"data":{}}`,
			wantErr: ErrUnsupportedEvent,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			evt, err := ParseEvent([]byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseEvent error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEvent failed: %v", err)
			}
			if evt.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", evt.Type, tt.wantType)
			}
		})
	}
}

func TestParseUserData(t *testing.T) {
	t.Parallel()

	payload := `{
		"type": "user.created",
		"data": {
			"id": "idp_1",
			"username": "ansel",
			"first_name": "Ansel",
			"last_name": "Adams",
			"image_url": "https://img.example.com/ansel.png",
			"email_addresses": [{"email_address": "ansel@example.com"}]
		}
	}`

	evt, err := ParseEvent([]byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}

	data, err := ParseUserData(evt)
	if err != nil {
		t.Fatalf("ParseUserData failed: %v", err)
	}

	if data.ID != "idp_1" {
		t.Errorf("ID = %q, want idp_1", data.ID)
	}
	if data.PrimaryEmail() != "ansel@example.com" {
		t.Errorf("PrimaryEmail = %q, want ansel@example.com", data.PrimaryEmail())
	}
	if data.Username != "ansel" {
		t.Errorf("Username = %q, want ansel", data.Username)
	}
}

func TestParseUserData_MissingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{"no id", `{"type":"user.created","data":{"email_addresses":[{"email_address":"a@b.c"}]}}`},
		{"created without email", `{"type":"user.created","data":{"id":"idp_1"}}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			evt, err := ParseEvent([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ParseEvent failed: %v", err)
			}
			if _, err := ParseUserData(evt); !errors.Is(err, ErrMissingField) {
				t.Errorf("Expected ErrMissingField, got: %v", err)
			}
		})
	}
}

func TestParseUserData_DeletedNeedsOnlyID(t *testing.T) {
	t.Parallel()

	evt, err := ParseEvent([]byte(`{"type":"user.deleted","data":{"id":"idp_1","deleted":true}}`))
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}

	data, err := ParseUserData(evt)
	if err != nil {
		t.Fatalf("ParseUserData failed: %v", err)
	}
	if data.ID != "idp_1" {
		t.Errorf("ID = %q, want idp_1", data.ID)
	}
}

func TestSetUserMetadata(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "sk_test_123")
	if err := c.SetUserMetadata(context.Background(), "idp_1", "user-abc"); err != nil {
		t.Fatalf("SetUserMetadata failed: %v", err)
	}

	if gotPath != "PATCH /users/idp_1/metadata" {
		t.Errorf("request = %q, want PATCH /users/idp_1/metadata", gotPath)
	}
	if gotAuth != "Bearer sk_test_123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["public_metadata"]["userId"] != "user-abc" {
		t.Errorf("metadata userId = %q, want user-abc", gotBody["public_metadata"]["userId"])
	}
}

func TestSetUserMetadata_UpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "sk_test_123")
	if err := c.SetUserMetadata(context.Background(), "idp_1", "user-abc"); err == nil {
		t.Error("Expected error for upstream failure")
	}
}
