package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pixelift/pixelift/internal/model"
)

func TestNewUsageEvent(t *testing.T) {
	t.Parallel()

	appliedAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	payload := NewUsageEvent("user_1", "img_1", "sess_1", model.KindRecolor, 1, 850*time.Millisecond, appliedAt)

	if payload.UserID != "user_1" {
		t.Errorf("UserID = %q, want user_1", payload.UserID)
	}
	if payload.Kind != "recolor" {
		t.Errorf("Kind = %q, want recolor", payload.Kind)
	}
	if payload.Credits != 1 {
		t.Errorf("Credits = %d, want 1", payload.Credits)
	}
	if payload.RenderMs != 850 {
		t.Errorf("RenderMs = %d, want 850", payload.RenderMs)
	}
	if payload.AppliedAt != appliedAt.UnixMilli() {
		t.Errorf("AppliedAt = %d, want %d", payload.AppliedAt, appliedAt.UnixMilli())
	}
}

func TestNewUsageEvent_SubMillisecondRender(t *testing.T) {
	t.Parallel()

	payload := NewUsageEvent("user_1", "", "sess_1", model.KindRestore, 1, 400*time.Microsecond, time.Now())
	if payload.RenderMs != 1 {
		t.Errorf("RenderMs = %d, want 1 for sub-millisecond render", payload.RenderMs)
	}

	payload = NewUsageEvent("user_1", "", "sess_1", model.KindRestore, 1, 0, time.Now())
	if payload.RenderMs != 0 {
		t.Errorf("RenderMs = %d, want 0 for zero render duration", payload.RenderMs)
	}
}

func TestUsageEventPayload_CompactWireFormat(t *testing.T) {
	t.Parallel()

	payload := NewUsageEvent("user_1", "", "sess_1", model.KindFill, 1, 0, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC))

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// Optional fields must not take up stream space when unset.
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := raw["iid"]; ok {
		t.Error("empty image_id should be omitted from payload")
	}
	if _, ok := raw["rms"]; ok {
		t.Error("zero render_ms should be omitted from payload")
	}
	if raw["k"] != "fill" {
		t.Errorf("kind field = %v, want fill", raw["k"])
	}
}
