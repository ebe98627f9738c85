package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/model"
)

// maxUsageWindow caps the reporting window for usage queries.
const maxUsageWindow = 90 * 24 * time.Hour

// UsageStore reads usage aggregates for reporting.
type UsageStore interface {
	GetUsageSummary(ctx context.Context, userID string, from, to time.Time) (*model.UsageSummary, error)
	GetDailyUsage(ctx context.Context, userID string, from, to time.Time) ([]*model.DailyUsageStats, error)
}

// UsageHandler serves per-user transformation usage reports.
type UsageHandler struct {
	store  UsageStore
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(store UsageStore, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		store:  store,
		logger: logger.With("component", "handler.usage"),
	}
}

// GetUsage handles GET /api/v1/me/usage.
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	from, to := h.parseTimeRange(r)

	summary, err := h.store.GetUsageSummary(r.Context(), userID, from, to)
	if err != nil {
		h.logger.Error("failed to get usage summary", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch usage")
		return
	}

	var daily []dto.DailyUsage
	if r.URL.Query().Get("daily") != "false" {
		stats, err := h.store.GetDailyUsage(r.Context(), userID, from, to)
		if err != nil {
			h.logger.Error("failed to get daily usage", "user_id", userID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch usage")
			return
		}
		daily = rollupDaily(stats)
	}

	response := dto.UsageResponse{
		Summary:     *summary,
		Daily:       daily,
		GeneratedAt: time.Now().UTC(),
	}
	response.Period.From = from.Format("2006-01-02")
	response.Period.To = to.Format("2006-01-02")

	writeJSON(w, http.StatusOK, response)
}

// parseTimeRange extracts from/to dates from query params.
// Defaults to the last 7 days, capped at 90 days, never in the future.
func (h *UsageHandler) parseTimeRange(r *http.Request) (time.Time, time.Time) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		if parsed, err := time.Parse("2006-01-02", fromStr); err == nil {
			from = parsed
		}
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		if parsed, err := time.Parse("2006-01-02", toStr); err == nil {
			// Include the whole end day.
			to = parsed.Add(24*time.Hour - time.Nanosecond)
		}
	}

	if to.After(now) {
		to = now
	}
	if to.Sub(from) > maxUsageWindow {
		from = to.Add(-maxUsageWindow)
	}
	if from.After(to) {
		from = to
	}

	return from, to
}

// rollupDaily collapses per-kind rows into one entry per day.
func rollupDaily(stats []*model.DailyUsageStats) []dto.DailyUsage {
	var daily []dto.DailyUsage
	for _, stat := range stats {
		date := stat.Day.Format("2006-01-02")
		if n := len(daily); n > 0 && daily[n-1].Date == date {
			daily[n-1].Applies += stat.Applies
			daily[n-1].Credits += stat.Credits
			continue
		}
		daily = append(daily, dto.DailyUsage{
			Date:    date,
			Applies: stat.Applies,
			Credits: stat.Credits,
		})
	}
	return daily
}

// writeError writes a JSON error response.
func (h *UsageHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
