package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pixelift/pixelift/internal/auth"
	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/transform"
)

type stubLedger struct {
	balance int
}

func (s *stubLedger) Balance(ctx context.Context, userID string) (int, error) {
	return s.balance, nil
}

func (s *stubLedger) AdjustCreditBalance(ctx context.Context, userID string, delta int) (int, error) {
	s.balance += delta
	return s.balance, nil
}

type stubRenderer struct {
	url string
	err error
}

func (s *stubRenderer) Render(ctx context.Context, publicID string, d *transform.Descriptor, width, height int) (string, error) {
	return s.url, s.err
}

type stubRecordStore struct{}

func (stubRecordStore) Save(ctx context.Context, rec transform.Record, userID string) (string, error) {
	return "img_1", nil
}

// applyTransformation stages a restore workflow in a registry, then exercises
// Apply through the router so session lookup runs as in production.
func applyTransformation(t *testing.T, renderer *stubRenderer, recorder metrics.Recorder) *httptest.ResponseRecorder {
	t.Helper()

	ledger := &stubLedger{balance: 10}
	registry := transform.NewRegistry(time.Minute)
	t.Cleanup(func() { _ = registry.Shutdown(context.Background()) })

	session, err := transform.NewSession(model.KindRestore, time.Hour)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	wf := transform.NewWorkflow(transform.WorkflowConfig{
		ID:       "sess_1",
		UserID:   "user_1",
		Fee:      1,
		Session:  session,
		Ledger:   ledger,
		Renderer: renderer,
		Store:    stubRecordStore{},
	})
	if err := wf.AttachAsset("pixelift/a", "https://cdn.example/a.png", 800, 600); err != nil {
		t.Fatalf("AttachAsset: %v", err)
	}
	registry.Put(wf)

	h := NewTransformHandler(TransformHandlerConfig{
		Registry: registry,
		Ledger:   ledger,
		Renderer: renderer,
		Store:    stubRecordStore{},
		Metrics:  recorder,
		Fee:      1,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	r := chi.NewRouter()
	r.Post("/transform/sessions/{id}/apply", h.Apply)

	req := httptest.NewRequest(http.MethodPost, "/transform/sessions/sess_1/apply", nil)
	authCtx := &model.AuthContext{UserID: "user_1", Scopes: []string{model.ScopeWrite}}
	req = req.WithContext(auth.ContextWithAuth(req.Context(), authCtx))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTransformHandler_ApplyRecordsMetrics(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	rec := applyTransformation(t, &stubRenderer{url: "https://cdn.example/out.png"}, recorder)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	snap := recorder.Snapshot()
	if snap.TransformationsApplied["restore"] != 1 {
		t.Errorf("applied[restore] = %d, want 1", snap.TransformationsApplied["restore"])
	}
	if len(snap.TransformationsFailed) != 0 {
		t.Errorf("failed = %v, want empty", snap.TransformationsFailed)
	}
	if snap.RenderDurationCount != 1 {
		t.Errorf("render duration observations = %d, want 1", snap.RenderDurationCount)
	}
}

func TestTransformHandler_ApplyRecordsRenderFailure(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	rec := applyTransformation(t, &stubRenderer{err: context.DeadlineExceeded}, recorder)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d: %s", rec.Code, rec.Body.String())
	}

	snap := recorder.Snapshot()
	if snap.TransformationsFailed["restore"] != 1 {
		t.Errorf("failed[restore] = %d, want 1", snap.TransformationsFailed["restore"])
	}
	if len(snap.TransformationsApplied) != 0 {
		t.Errorf("applied = %v, want empty", snap.TransformationsApplied)
	}
	if snap.RenderDurationCount != 0 {
		t.Errorf("render duration observations = %d, want 0", snap.RenderDurationCount)
	}
}
