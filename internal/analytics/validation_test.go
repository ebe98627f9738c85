package analytics

import (
	"strings"
	"testing"
	"time"
)

func TestValidateUsageEventPayload(t *testing.T) {
	valid := UsageEventPayload{
		UserID:    "user_1",
		ImageID:   "img_1",
		SessionID: "sess_1",
		Kind:      "recolor",
		Credits:   1,
		RenderMs:  850,
		AppliedAt: time.Now().UnixMilli(),
	}

	if err := ValidateUsageEventPayload(valid); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	longID := strings.Repeat("x", 65)

	cases := []struct {
		name    string
		payload UsageEventPayload
	}{
		{"missing_user_id", UsageEventPayload{SessionID: "sess", Kind: "restore", AppliedAt: 1}},
		{"user_id_too_long", UsageEventPayload{UserID: longID, SessionID: "sess", Kind: "restore", AppliedAt: 1}},
		{"missing_session_id", UsageEventPayload{UserID: "user", Kind: "restore", AppliedAt: 1}},
		{"image_id_too_long", UsageEventPayload{UserID: "user", ImageID: longID, SessionID: "sess", Kind: "restore", AppliedAt: 1}},
		{"unknown_kind", UsageEventPayload{UserID: "user", SessionID: "sess", Kind: "sharpen", AppliedAt: 1}},
		{"empty_kind", UsageEventPayload{UserID: "user", SessionID: "sess", AppliedAt: 1}},
		{"negative_credits", UsageEventPayload{UserID: "user", SessionID: "sess", Kind: "restore", Credits: -1, AppliedAt: 1}},
		{"negative_render_ms", UsageEventPayload{UserID: "user", SessionID: "sess", Kind: "restore", RenderMs: -5, AppliedAt: 1}},
		{"missing_applied_at", UsageEventPayload{UserID: "user", SessionID: "sess", Kind: "restore"}},
	}

	for _, tc := range cases {
		if err := ValidateUsageEventPayload(tc.payload); err == nil {
			t.Fatalf("expected error for %s", tc.name)
		}
	}
}
