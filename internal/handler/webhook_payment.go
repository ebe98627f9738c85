package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pixelift/pixelift/internal/handler/dto"
	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/payments"
	"github.com/pixelift/pixelift/internal/service"
)

// PaymentWebhookHandler receives checkout completion events from the
// payment provider and fulfills credit purchases.
type PaymentWebhookHandler struct {
	secret       string
	transactions *service.TransactionService
	metrics      metrics.Recorder
	logger       *slog.Logger
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler.
func NewPaymentWebhookHandler(webhookSecret string, transactions *service.TransactionService, recorder metrics.Recorder, logger *slog.Logger) *PaymentWebhookHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PaymentWebhookHandler{
		secret:       webhookSecret,
		transactions: transactions,
		metrics:      recorder,
		logger:       logger,
	}
}

// Handle processes POST /api/webhooks/payment.
func (h *PaymentWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		h.reject(w, "PAYLOAD_UNREADABLE", "Could not read request body")
		return
	}

	sig := r.Header.Get(payments.HeaderSignature)
	if err := payments.VerifySignature(h.secret, sig, payload, payments.DefaultReplayWindow); err != nil {
		h.metrics.IncWebhookProcessed("payment", "rejected")
		h.logger.Warn("payment webhook rejected",
			"reason", err.Error(),
			"ip", r.RemoteAddr,
		)
		h.reject(w, "INVALID_SIGNATURE", "Webhook signature verification failed")
		return
	}

	event, err := payments.ParseEvent(payload)
	if err != nil {
		h.metrics.IncWebhookProcessed("payment", "rejected")
		h.reject(w, "MALFORMED_EVENT", "Malformed event payload")
		return
	}

	// Only checkout completions are fulfilled; other event types are
	// acknowledged so the provider stops retrying them.
	if event.Type != payments.EventCheckoutCompleted {
		h.metrics.IncWebhookProcessed("payment", "skipped")
		writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
		return
	}

	tx, err := h.transactions.Fulfill(r.Context(), event.Data.Object)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateSession):
			// Replayed delivery; the purchase is already fulfilled.
			h.metrics.IncWebhookProcessed("payment", "skipped")
			writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
		case errors.Is(err, service.ErrTransactionInvalid):
			h.metrics.IncWebhookProcessed("payment", "rejected")
			h.reject(w, "INVALID_TRANSACTION", "Event is missing purchase metadata")
		default:
			h.metrics.IncWebhookProcessed("payment", "failed")
			h.logger.Error("payment fulfillment failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
				Error: "Failed to fulfill purchase",
				Code:  "INTERNAL_ERROR",
			})
		}
		return
	}

	h.metrics.IncWebhookProcessed("payment", "processed")
	h.logger.Info("purchase fulfilled",
		"transaction_id", tx.ID,
		"plan", tx.Plan,
		"credits", tx.Credits,
		"buyer_id", tx.BuyerID,
	)

	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (h *PaymentWebhookHandler) reject(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
