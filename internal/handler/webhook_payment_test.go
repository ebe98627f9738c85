package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/payments"
)

const paymentTestSecret = "whsec_test_secret"

func paymentWebhookRequest(payload []byte, header string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(payload))
	if header != "" {
		r.Header.Set(payments.HeaderSignature, header)
	}
	return r
}

func TestPaymentWebhookHandler_RejectsBadSignatures(t *testing.T) {
	t.Parallel()

	now := time.Now().Unix()
	payload := []byte(`{"type":"checkout.session.completed"}`)

	tests := []struct {
		name   string
		header string
	}{
		{
			name:   "missing header",
			header: "",
		},
		{
			name:   "garbage header",
			header: "t=abc,v1=nothex",
		},
		{
			name:   "wrong secret",
			header: payments.SignPayload("whsec_other", now, payload),
		},
		{
			name:   "stale timestamp",
			header: payments.SignPayload(paymentTestSecret, now-int64((payments.DefaultReplayWindow+time.Minute).Seconds()), payload),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorder := metrics.NewInMemory()
			h := NewPaymentWebhookHandler(paymentTestSecret, nil, recorder, slog.New(slog.NewTextHandler(io.Discard, nil)))

			rec := httptest.NewRecorder()
			h.Handle(rec, paymentWebhookRequest(payload, tt.header))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			var body dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Code != "INVALID_SIGNATURE" {
				t.Errorf("error code = %q, want INVALID_SIGNATURE", body.Code)
			}
			if got := recorder.Snapshot().WebhooksProcessed["payment/rejected"]; got != 1 {
				t.Errorf("payment/rejected counter = %d, want 1", got)
			}
		})
	}
}

func TestPaymentWebhookHandler_ValidSignatureReachesParser(t *testing.T) {
	t.Parallel()

	payload := []byte("not json")
	header := payments.SignPayload(paymentTestSecret, time.Now().Unix(), payload)
	h := NewPaymentWebhookHandler(paymentTestSecret, nil, metrics.NewNoop(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.Handle(rec, paymentWebhookRequest(payload, header))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	var body dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	// MALFORMED_EVENT means signature verification passed and the body
	// made it to the event parser.
	if body.Code != "MALFORMED_EVENT" {
		t.Errorf("error code = %q, want MALFORMED_EVENT", body.Code)
	}
}

func TestPaymentWebhookHandler_SkipsUnrelatedEvents(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"type":"invoice.paid","data":{"object":{}}}`)
	header := payments.SignPayload(paymentTestSecret, time.Now().Unix(), payload)
	h := NewPaymentWebhookHandler(paymentTestSecret, nil, metrics.NewNoop(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.Handle(rec, paymentWebhookRequest(payload, header))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for unrelated event, got %d", rec.Code)
	}
}
