package dto

import (
	"time"

	"github.com/pixelift/pixelift/internal/model"
)

// UsagePeriod is the reporting window of a usage response.
type UsagePeriod struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DailyUsage is one day of the usage breakdown.
type DailyUsage struct {
	Date    string `json:"date"`
	Applies int64  `json:"applies"`
	Credits int64  `json:"credits"`
}

// UsageResponse is the response body for GET /api/v1/me/usage.
type UsageResponse struct {
	Period      UsagePeriod        `json:"period"`
	Summary     model.UsageSummary `json:"summary"`
	Daily       []DailyUsage       `json:"daily,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}
