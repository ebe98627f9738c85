package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pixelift/pixelift/internal/model"
)

// BulkInsertUsageEvents inserts a batch of usage events. Duplicate
// event IDs are skipped so replayed stream batches stay idempotent.
func (r *Repository) BulkInsertUsageEvents(ctx context.Context, events []*model.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO usage_events (id, event_id, user_id, image_id, session_id, kind, credits, render_ms, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.UserID,
			nullableText(event.ImageID),
			event.SessionID,
			string(event.Kind),
			event.Credits,
			event.RenderMs,
			event.AppliedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert usage event: %w", err)
		}
	}

	return nil
}

// UpdateUsageDailyStats folds a batch of events into the per-day
// rollup table. Events are aggregated in memory first so each
// (user, day, kind) bucket gets a single upsert.
func (r *Repository) UpdateUsageDailyStats(ctx context.Context, events []*model.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	type bucket struct {
		userID  string
		day     time.Time
		kind    model.TransformationKind
		applies int64
		credits int64
	}

	buckets := make(map[string]*bucket)
	for _, event := range events {
		day := event.AppliedAt.UTC().Truncate(24 * time.Hour)
		key := event.UserID + "|" + day.Format("2006-01-02") + "|" + string(event.Kind)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{userID: event.UserID, day: day, kind: event.Kind}
			buckets[key] = b
		}
		b.applies++
		b.credits += int64(event.Credits)
	}

	query := `
		INSERT INTO usage_daily_stats (user_id, day, kind, applies, credits)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, day, kind) DO UPDATE SET
			applies = usage_daily_stats.applies + EXCLUDED.applies,
			credits = usage_daily_stats.credits + EXCLUDED.credits
	`

	batch := &pgx.Batch{}
	for _, b := range buckets {
		batch.Queue(query, b.userID, b.day, string(b.kind), b.applies, b.credits)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range buckets {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert daily usage stats: %w", err)
		}
	}

	return nil
}

// GetUsageSummary aggregates a user's usage over [from, to].
func (r *Repository) GetUsageSummary(ctx context.Context, userID string, from, to time.Time) (*model.UsageSummary, error) {
	query := `
		SELECT kind, COUNT(*), COALESCE(SUM(credits), 0)
		FROM usage_events
		WHERE user_id = $1 AND applied_at >= $2 AND applied_at <= $3
		GROUP BY kind
	`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	defer rows.Close()

	summary := &model.UsageSummary{ByKind: make(map[string]int64)}
	for rows.Next() {
		var kind string
		var applies, credits int64
		if err := rows.Scan(&kind, &applies, &credits); err != nil {
			return nil, fmt.Errorf("scan usage summary row: %w", err)
		}
		summary.ByKind[kind] = applies
		summary.TotalApplies += applies
		summary.CreditsSpent += credits
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage summary rows: %w", err)
	}

	return summary, nil
}

// GetDailyUsage returns per-day usage rollups for a user, oldest first.
func (r *Repository) GetDailyUsage(ctx context.Context, userID string, from, to time.Time) ([]*model.DailyUsageStats, error) {
	query := `
		SELECT user_id, day, kind, applies, credits
		FROM usage_daily_stats
		WHERE user_id = $1 AND day >= $2::date AND day <= $3::date
		ORDER BY day ASC, kind ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily usage: %w", err)
	}
	defer rows.Close()

	var stats []*model.DailyUsageStats
	for rows.Next() {
		stat := &model.DailyUsageStats{}
		var kind string
		if err := rows.Scan(&stat.UserID, &stat.Day, &kind, &stat.Applies, &stat.Credits); err != nil {
			return nil, fmt.Errorf("scan daily usage row: %w", err)
		}
		stat.Kind = model.TransformationKind(kind)
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily usage rows: %w", err)
	}

	return stats, nil
}

// nullableText maps "" to NULL for optional text columns.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
