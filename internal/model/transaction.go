// Package model defines domain entities for the application.
package model

import "time"

// Transaction records one confirmed credit purchase.
// Rows are append-only; each one corresponds to exactly one ledger increment.
type Transaction struct {
	ID                string    `json:"id"`
	ProviderSessionID string    `json:"provider_session_id"`
	Plan              string    `json:"plan"`
	Credits           int       `json:"credits"`
	AmountCents       int64     `json:"amount_cents"`
	BuyerID           string    `json:"buyer_id"`
	CreatedAt         time.Time `json:"created_at"`
}
