// Package identity integrates with the hosted identity provider: inbound
// webhook verification and the metadata write-back on user creation.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook header names used by the identity provider.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

const (
	// DefaultReplayWindow is the replay protection window.
	DefaultReplayWindow = 5 * time.Minute

	// secretPrefix marks a base64-encoded signing secret.
	secretPrefix = "whsec_"
)

var (
	// ErrMissingHeaders is returned when a signature header is absent.
	ErrMissingHeaders = errors.New("missing webhook headers")
	// ErrReplayWindowExceeded is returned when timestamp is outside replay window.
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidSecret is returned when the signing secret cannot be decoded.
	ErrInvalidSecret = errors.New("invalid signing secret")
)

// Verifier checks identity webhook signatures.
type Verifier struct {
	key          []byte
	replayWindow time.Duration
}

// NewVerifier creates a Verifier from the provider's signing secret.
// The secret carries a "whsec_" prefix followed by base64 key material.
func NewVerifier(secret string) (*Verifier, error) {
	raw := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return &Verifier{key: key, replayWindow: DefaultReplayWindow}, nil
}

// Verify validates a webhook payload against its signature headers.
// The signed content is "{id}.{timestamp}.{payload}"; the signature header
// holds one or more space-separated "v1,<base64>" values, any of which may
// match (the provider rotates secrets).
func (v *Verifier) Verify(id, timestamp, signatureHeader string, payload []byte) error {
	if id == "" || timestamp == "" || signatureHeader == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	now := time.Now().Unix()
	if abs(now-ts) > int64(v.replayWindow.Seconds()) {
		return ErrReplayWindowExceeded
	}

	expected := v.sign(id, timestamp, payload)

	for _, candidate := range strings.Fields(signatureHeader) {
		version, sig, found := strings.Cut(candidate, ",")
		if !found || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}

	return ErrInvalidSignature
}

// Sign produces the "v1,<base64>" signature for a payload. Used by tests
// and local webhook senders.
func (v *Verifier) Sign(id, timestamp string, payload []byte) string {
	return "v1," + v.sign(id, timestamp, payload)
}

func (v *Verifier) sign(id, timestamp string, payload []byte) string {
	content := fmt.Sprintf("%s.%s.%s", id, timestamp, payload)
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(content))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
