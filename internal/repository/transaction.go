package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pixelift/pixelift/internal/model"
)

// Common errors for transaction repository operations.
var (
	// ErrTransactionExists means a transaction for the same provider
	// checkout session was already recorded. Callers rely on this to keep
	// ledger increments idempotent across webhook retries.
	ErrTransactionExists   = errors.New("transaction already recorded")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// CreateTransaction inserts a credit-purchase record. Transactions are
// append-only; there is no update path.
func (r *Repository) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	query := `
		INSERT INTO transactions (id, provider_session_id, plan, credits, amount_cents, buyer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		tx.ID,
		tx.ProviderSessionID,
		tx.Plan,
		tx.Credits,
		tx.AmountCents,
		tx.BuyerID,
		tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTransactionExists
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetTransactionBySessionID retrieves a transaction by its provider
// checkout-session id.
func (r *Repository) GetTransactionBySessionID(ctx context.Context, sessionID string) (*model.Transaction, error) {
	query := `
		SELECT id, provider_session_id, plan, credits, amount_cents, buyer_id, created_at
		FROM transactions
		WHERE provider_session_id = $1
	`

	var tx model.Transaction
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&tx.ID,
		&tx.ProviderSessionID,
		&tx.Plan,
		&tx.Credits,
		&tx.AmountCents,
		&tx.BuyerID,
		&tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

// ListTransactionsByBuyer retrieves a user's purchase history, newest first.
func (r *Repository) ListTransactionsByBuyer(ctx context.Context, buyerID string, limit int) ([]*model.Transaction, error) {
	query := `
		SELECT id, provider_session_id, plan, credits, amount_cents, buyer_id, created_at
		FROM transactions
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, buyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*model.Transaction
	for rows.Next() {
		var tx model.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.ProviderSessionID,
			&tx.Plan,
			&tx.Credits,
			&tx.AmountCents,
			&tx.BuyerID,
			&tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}
