package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pixelift/pixelift/internal/model"
)

const (
	// clientTimeout is the total request timeout for provider API calls.
	clientTimeout = 30 * time.Second
	// dialTimeout is the connection timeout.
	dialTimeout = 10 * time.Second
)

// Config holds payment provider connection settings.
type Config struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	APIURL     string // override for tests
}

// CheckoutSession is the provider's hosted checkout session.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client creates checkout sessions against the payment provider.
type Client struct {
	cfg        Config
	apiURL     string
	httpClient *http.Client
}

// NewClient creates a payment provider client.
func NewClient(cfg Config) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.stripe.com"
	}
	return &Client{
		cfg:    cfg,
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CreateCheckoutSession opens a hosted checkout session for a credit
// package. Plan, credits, and buyer travel in session metadata and come
// back on the completion webhook.
func (c *Client) CreateCheckoutSession(ctx context.Context, offer model.PlanOffer, buyerID string) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.cfg.SuccessURL)
	form.Set("cancel_url", c.cfg.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(offer.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", offer.Label)
	form.Set("metadata[plan]", offer.Name)
	form.Set("metadata[credits]", strconv.Itoa(offer.Credits))
	form.Set("metadata[buyerId]", buyerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("checkout returned status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}

	return &session, nil
}

// CompletedSession is the webhook payload for a finished checkout.
type CompletedSession struct {
	ID          string            `json:"id"`
	AmountTotal int64             `json:"amount_total"`
	Metadata    map[string]string `json:"metadata"`
}

// WebhookEvent is the envelope of a payment webhook payload.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object CompletedSession `json:"object"`
	} `json:"data"`
}

// EventCheckoutCompleted is the only event type the service consumes.
const EventCheckoutCompleted = "checkout.session.completed"

// ParseEvent decodes a verified webhook payload.
func ParseEvent(payload []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode payment event: %w", err)
	}
	return &evt, nil
}
