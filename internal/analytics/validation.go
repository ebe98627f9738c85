// Package analytics provides transformation usage event capture and processing.
package analytics

import (
	"fmt"

	"github.com/pixelift/pixelift/internal/model"
)

const maxIDLength = 64

// ValidateUsageEventPayload validates usage event payload fields.
func ValidateUsageEventPayload(payload UsageEventPayload) error {
	if payload.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if len(payload.UserID) > maxIDLength {
		return fmt.Errorf("user_id too long")
	}
	if payload.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if len(payload.SessionID) > maxIDLength {
		return fmt.Errorf("session_id too long")
	}
	if len(payload.ImageID) > maxIDLength {
		return fmt.Errorf("image_id too long")
	}
	if !model.TransformationKind(payload.Kind).IsValid() {
		return fmt.Errorf("unknown transformation kind %q", payload.Kind)
	}
	if payload.Credits < 0 {
		return fmt.Errorf("credits must not be negative")
	}
	if payload.RenderMs < 0 {
		return fmt.Errorf("render_ms must not be negative")
	}
	if payload.AppliedAt <= 0 {
		return fmt.Errorf("applied_at must be set")
	}
	return nil
}
