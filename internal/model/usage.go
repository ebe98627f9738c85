package model

import "time"

// UsageEvent records a single applied transformation for reporting.
// EventID carries the Redis stream message ID and acts as the
// idempotency key for replayed batches.
type UsageEvent struct {
	ID        string             `json:"id" db:"id"`
	EventID   string             `json:"event_id" db:"event_id"`
	UserID    string             `json:"user_id" db:"user_id"`
	ImageID   string             `json:"image_id,omitempty" db:"image_id"`
	SessionID string             `json:"session_id" db:"session_id"`
	Kind      TransformationKind `json:"kind" db:"kind"`
	Credits   int                `json:"credits" db:"credits"`
	RenderMs  int64              `json:"render_ms" db:"render_ms"`
	AppliedAt time.Time          `json:"applied_at" db:"applied_at"`
}

// DailyUsageStats is a per-user, per-day, per-kind usage rollup.
type DailyUsageStats struct {
	UserID  string             `json:"user_id" db:"user_id"`
	Day     time.Time          `json:"day" db:"day"`
	Kind    TransformationKind `json:"kind" db:"kind"`
	Applies int64              `json:"applies" db:"applies"`
	Credits int64              `json:"credits" db:"credits"`
}

// UsageSummary aggregates a user's usage over a reporting window.
type UsageSummary struct {
	TotalApplies int64            `json:"total_applies"`
	CreditsSpent int64            `json:"credits_spent"`
	ByKind       map[string]int64 `json:"by_kind"`
}
