package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pixelift/pixelift/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, provider_id, email, username, first_name, last_name, photo_url, plan, credit_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.ProviderID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PhotoURL,
		user.Plan,
		user.CreditBalance,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their local ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByProviderID retrieves a user by their identity-provider ID.
func (r *Repository) GetUserByProviderID(ctx context.Context, providerID string) (*model.User, error) {
	return r.getUser(ctx, `WHERE provider_id = $1`, providerID)
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	query := `
		SELECT id, provider_id, email, username, first_name, last_name, photo_url, plan, credit_balance, created_at, updated_at
		FROM users
	` + where

	var user model.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.ProviderID,
		&user.Email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.PhotoURL,
		&user.Plan,
		&user.CreditBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateUserByProviderID updates the profile fields mirrored from the
// identity provider.
func (r *Repository) UpdateUserByProviderID(ctx context.Context, providerID string, user *model.User) error {
	query := `
		UPDATE users
		SET email = $2, username = $3, first_name = $4, last_name = $5, photo_url = $6, updated_at = NOW()
		WHERE provider_id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		providerID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PhotoURL,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// DeleteUserByProviderID removes a user after an account-deletion webhook.
func (r *Repository) DeleteUserByProviderID(ctx context.Context, providerID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE provider_id = $1`, providerID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AdjustCreditBalance applies delta to a user's balance as a single atomic
// update and returns the new balance. The read-modify-write happens inside
// one statement so concurrent adjustments on the same user cannot lose
// increments. Balances may go negative.
func (r *Repository) AdjustCreditBalance(ctx context.Context, userID string, delta int) (int, error) {
	query := `
		UPDATE users
		SET credit_balance = credit_balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING credit_balance
	`

	var balance int
	err := r.pool.QueryRow(ctx, query, userID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to adjust credit balance: %w", err)
	}

	return balance, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	// PostgreSQL error code 23505 is unique_violation
	return err != nil && (contains(err.Error(), "23505") || contains(err.Error(), "unique"))
}

// contains checks if a string contains a substring.
func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

// searchString is a simple string search.
func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
