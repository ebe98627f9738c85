//go:build integration

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pixelift/pixelift/internal/analytics"
	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/cache"
	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/repository"
	"github.com/pixelift/pixelift/internal/testutil"
)

func TestUsageIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetUsageSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset usage schema: %v", err)
	}

	cacheClient, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() {
		_ = cacheClient.Close()
	})

	if err := testutil.FlushRedis(ctx, cacheClient.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	recorder := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := analytics.NewPublisher(cacheClient.Client(), logger, recorder)
	usageHandler := NewUsageHandler(repo, logger)

	worker := analytics.NewWorker(cacheClient.Client(), repo, logger, "test-consumer", recorder)
	worker.SetBlockTimeout(200 * time.Millisecond)
	worker.SetClaimInterval(200 * time.Millisecond)
	worker.SetMetricsInterval(200 * time.Millisecond)
	worker.SetBatchSize(100)

	workerCtx, cancel := context.WithCancel(ctx)
	workerErr := make(chan error, 1)
	go func() {
		workerErr <- worker.Run(workerCtx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-workerErr:
		case <-time.After(2 * time.Second):
		}
	})

	userID := testutil.UniqueID("user")
	otherID := testutil.UniqueID("other")
	now := time.Now().UTC()

	events := []analytics.UsageEventPayload{
		analytics.NewUsageEvent(userID, "", testutil.UniqueID("sess"), model.KindRestore, 1, 500*time.Millisecond, now),
		analytics.NewUsageEvent(userID, "", testutil.UniqueID("sess"), model.KindRecolor, 1, 700*time.Millisecond, now),
		analytics.NewUsageEvent(userID, "", testutil.UniqueID("sess"), model.KindRecolor, 1, 650*time.Millisecond, now),
		analytics.NewUsageEvent(otherID, "", testutil.UniqueID("sess"), model.KindFill, 1, 300*time.Millisecond, now),
	}
	for _, event := range events {
		if _, err := publisher.Publish(ctx, event); err != nil {
			t.Fatalf("publish usage event: %v", err)
		}
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := &model.AuthContext{UserID: userID, Scopes: []string{model.ScopeRead}}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	})
	router.Get("/api/v1/me/usage", usageHandler.GetUsage)

	date := now.Format("2006-01-02")
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		response, status := fetchUsage(t, router, date, date)
		if status != http.StatusOK {
			t.Fatalf("usage status %d", status)
		}
		if response.Summary.TotalApplies == 3 && response.Summary.CreditsSpent == 3 {
			if got := response.Summary.ByKind["recolor"]; got != 2 {
				t.Fatalf("recolor applies = %d, want 2", got)
			}
			if len(response.Daily) != 1 || response.Daily[0].Applies != 3 {
				t.Fatalf("unexpected daily breakdown %+v", response.Daily)
			}
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	response, _ := fetchUsage(t, router, date, date)
	t.Fatalf("expected 3 applies for 3 credits, got %d/%d",
		response.Summary.TotalApplies, response.Summary.CreditsSpent)
}

func fetchUsage(t *testing.T, router *chi.Mux, from, to string) (dto.UsageResponse, int) {
	t.Helper()

	path := fmt.Sprintf("/api/v1/me/usage?from=%s&to=%s", from, to)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var payload dto.UsageResponse
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("decode usage response: %v", err)
		}
	}

	return payload, rec.Code
}
