// Package model defines domain entities for the application.
package model

import "time"

// Credit plan names offered at checkout.
const (
	PlanFree    = "free"
	PlanPro     = "pro"
	PlanPremium = "premium"
)

// User represents an account mirrored from the identity provider.
// Rows are created and updated by identity webhooks, never by users directly.
type User struct {
	ID            string    `json:"id"`
	ProviderID    string    `json:"provider_id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	PhotoURL      string    `json:"photo_url"`
	Plan          string    `json:"plan"`
	CreditBalance int       `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName returns the user's full name, falling back to the username.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
