package dto

import (
	"time"

	"github.com/pixelift/pixelift/internal/model"
)

// ProfileResponse represents the authenticated user's profile.
type ProfileResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	Plan          string    `json:"plan"`
	CreditBalance int       `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

// CheckoutRequest starts a credit purchase.
type CheckoutRequest struct {
	Plan string `json:"plan"`
}

// CheckoutResponse carries the hosted checkout redirect.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// TransactionResponse represents a completed purchase.
type TransactionResponse struct {
	ID          string    `json:"id"`
	Plan        string    `json:"plan"`
	Credits     int       `json:"credits"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToProfileResponse converts a User model to a ProfileResponse DTO.
func ToProfileResponse(user *model.User) *ProfileResponse {
	return &ProfileResponse{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		PhotoURL:      user.PhotoURL,
		Plan:          user.Plan,
		CreditBalance: user.CreditBalance,
		CreatedAt:     user.CreatedAt,
	}
}

// ToTransactionResponses converts transactions for listing.
func ToTransactionResponses(txs []*model.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = TransactionResponse{
			ID:          tx.ID,
			Plan:        tx.Plan,
			Credits:     tx.Credits,
			AmountCents: tx.AmountCents,
			CreatedAt:   tx.CreatedAt,
		}
	}
	return out
}
