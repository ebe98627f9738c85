package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/pixelift/pixelift/internal/model"
)

// Common errors for access token repository operations.
var (
	ErrTokenNotFound = errors.New("access token not found")
)

// CreateAccessToken inserts a new access token.
func (r *Repository) CreateAccessToken(ctx context.Context, token *model.AccessToken) error {
	query := `
		INSERT INTO access_tokens (id, user_id, token_hash, token_prefix, scopes, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.TokenPrefix,
		pq.Array(token.Scopes),
		token.Name,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}

	return nil
}

// GetAccessTokensByPrefix retrieves all active tokens matching a prefix.
// Used during authentication to find candidate tokens for verification.
func (r *Repository) GetAccessTokensByPrefix(ctx context.Context, prefix string) ([]*model.AccessToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, scopes, name, revoked_at, last_used_at, created_at
		FROM access_tokens
		WHERE token_prefix = $1 AND revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get access tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []*model.AccessToken
	for rows.Next() {
		token, err := scanAccessToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access tokens: %w", err)
	}

	return tokens, nil
}

// GetAccessTokenByID retrieves a single token by id.
func (r *Repository) GetAccessTokenByID(ctx context.Context, id string) (*model.AccessToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, scopes, name, revoked_at, last_used_at, created_at
		FROM access_tokens
		WHERE id = $1
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get access token: %w", err)
		}
		return nil, ErrTokenNotFound
	}

	token, err := scanAccessToken(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan access token: %w", err)
	}
	return token, nil
}

// ListAccessTokensByUserID returns all tokens belonging to a user,
// including revoked ones, newest first.
func (r *Repository) ListAccessTokensByUserID(ctx context.Context, userID string) ([]*model.AccessToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, scopes, name, revoked_at, last_used_at, created_at
		FROM access_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*model.AccessToken
	for rows.Next() {
		token, err := scanAccessToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access tokens: %w", err)
	}

	return tokens, nil
}

// RevokeAccessToken revokes a token by setting revoked_at.
func (r *Repository) RevokeAccessToken(ctx context.Context, id string) error {
	query := `
		UPDATE access_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// UpdateAccessTokenLastUsed updates the last_used_at timestamp.
// Called asynchronously after successful authentication.
func (r *Repository) UpdateAccessTokenLastUsed(ctx context.Context, id string) error {
	query := `
		UPDATE access_tokens
		SET last_used_at = $2
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to update access token last used: %w", err)
	}

	return nil
}

func scanAccessToken(rows pgx.Rows) (*model.AccessToken, error) {
	var token model.AccessToken
	var scopes []string

	err := rows.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.TokenPrefix,
		pq.Array(&scopes),
		&token.Name,
		&token.RevokedAt,
		&token.LastUsedAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	token.Scopes = scopes
	return &token, nil
}
