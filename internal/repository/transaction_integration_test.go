//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/testutil"
)

// ============================================================================
// Transaction Repository Integration Tests
// ============================================================================

func newTestTransaction(t *testing.T, buyerID string) *model.Transaction {
	t.Helper()
	now := time.Now().UTC()
	return &model.Transaction{
		ID:                testutil.UniqueID("txn"),
		ProviderSessionID: fmt.Sprintf("cs_test_%d", now.UnixNano()),
		Plan:              model.PlanPro,
		Credits:           120,
		AmountCents:       4000,
		BuyerID:           buyerID,
		CreatedAt:         now,
	}
}

func TestIntegrationTransactionRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newTransactionTestEnv(t)

	buyer := mustCreateUser(ctx, t, repo)
	txn := newTestTransaction(t, buyer.ID)

	if err := repo.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	retrieved, err := repo.GetTransactionBySessionID(ctx, txn.ProviderSessionID)
	if err != nil {
		t.Fatalf("GetTransactionBySessionID failed: %v", err)
	}

	if retrieved.BuyerID != buyer.ID {
		t.Errorf("BuyerID mismatch: got %q, want %q", retrieved.BuyerID, buyer.ID)
	}
	if retrieved.Credits != 120 {
		t.Errorf("Credits mismatch: got %d, want 120", retrieved.Credits)
	}
	if retrieved.AmountCents != 4000 {
		t.Errorf("AmountCents mismatch: got %d, want 4000", retrieved.AmountCents)
	}
}

func TestIntegrationTransactionRepository_DuplicateSessionID(t *testing.T) {
	ctx, repo := newTransactionTestEnv(t)

	buyer := mustCreateUser(ctx, t, repo)
	txn := newTestTransaction(t, buyer.ID)

	if err := repo.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	// Same provider session replayed (e.g. webhook retry) must be rejected.
	dup := newTestTransaction(t, buyer.ID)
	dup.ProviderSessionID = txn.ProviderSessionID

	err := repo.CreateTransaction(ctx, dup)
	if !errors.Is(err, ErrTransactionExists) {
		t.Errorf("Expected ErrTransactionExists, got: %v", err)
	}
}

func TestIntegrationTransactionRepository_Get_NotFound(t *testing.T) {
	ctx, repo := newTransactionTestEnv(t)

	_, err := repo.GetTransactionBySessionID(ctx, "cs_missing")
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("Expected ErrTransactionNotFound, got: %v", err)
	}
}

func TestIntegrationTransactionRepository_ListByBuyer(t *testing.T) {
	ctx, repo := newTransactionTestEnv(t)

	buyer := mustCreateUser(ctx, t, repo)
	other := mustCreateUser(ctx, t, repo)

	for i := 0; i < 3; i++ {
		if err := repo.CreateTransaction(ctx, newTestTransaction(t, buyer.ID)); err != nil {
			t.Fatalf("CreateTransaction (%d) failed: %v", i, err)
		}
		time.Sleep(1 * time.Millisecond)
	}
	if err := repo.CreateTransaction(ctx, newTestTransaction(t, other.ID)); err != nil {
		t.Fatalf("CreateTransaction (other) failed: %v", err)
	}

	txns, err := repo.ListTransactionsByBuyer(ctx, buyer.ID, 10)
	if err != nil {
		t.Fatalf("ListTransactionsByBuyer failed: %v", err)
	}
	if len(txns) != 3 {
		t.Errorf("Expected 3 transactions, got %d", len(txns))
	}
	for _, txn := range txns {
		if txn.BuyerID != buyer.ID {
			t.Errorf("BuyerID mismatch: got %q, want %q", txn.BuyerID, buyer.ID)
		}
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newTransactionTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	// Reset users first (transactions depends on users)
	if err := testutil.ResetUsersSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset users schema: %v", err)
	}
	if err := testutil.ResetTransactionsSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset transactions schema: %v", err)
	}

	return ctx, repo
}
