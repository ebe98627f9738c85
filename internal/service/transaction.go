package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/payments"
	"github.com/pixelift/pixelift/internal/repository"
)

// Transaction service errors.
var (
	ErrUnknownPlan        = errors.New("unknown credit plan")
	ErrDuplicateSession   = errors.New("checkout session already fulfilled")
	ErrTransactionInvalid = errors.New("invalid transaction payload")
)

// checkoutClient starts hosted checkout sessions with the payment provider.
// *payments.Client satisfies it.
type checkoutClient interface {
	CreateCheckoutSession(ctx context.Context, offer model.PlanOffer, buyerID string) (*payments.CheckoutSession, error)
}

// transactionRepository is the persistence surface the transaction
// service needs. *repository.Repository satisfies it.
type transactionRepository interface {
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransactionBySessionID(ctx context.Context, sessionID string) (*model.Transaction, error)
	ListTransactionsByBuyer(ctx context.Context, buyerID string, limit int) ([]*model.Transaction, error)
}

// creditGranter applies signed deltas to a user's credit balance.
// *UserService satisfies it.
type creditGranter interface {
	AdjustCreditBalance(ctx context.Context, userID string, delta int) (int, error)
}

// TransactionService handles credit purchases: starting checkout sessions
// and fulfilling them from payment webhooks.
type TransactionService struct {
	repo     transactionRepository
	checkout checkoutClient
	ledger   creditGranter
	metrics  metrics.Recorder
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(repo transactionRepository, checkout checkoutClient, ledger creditGranter, recorder metrics.Recorder) *TransactionService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TransactionService{
		repo:     repo,
		checkout: checkout,
		ledger:   ledger,
		metrics:  recorder,
	}
}

// Checkout starts a hosted checkout session for one of the credit
// packages and returns the URL to redirect the buyer to.
func (s *TransactionService) Checkout(ctx context.Context, plan, buyerID string) (*payments.CheckoutSession, error) {
	offer, ok := model.PlanOffers[plan]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, offer, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session, nil
}

// Fulfill records a completed checkout session and credits the buyer.
// Provider webhooks are delivered at least once; a session that was
// already recorded returns ErrDuplicateSession and grants nothing.
func (s *TransactionService) Fulfill(ctx context.Context, completed payments.CompletedSession) (*model.Transaction, error) {
	if completed.ID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrTransactionInvalid)
	}
	buyerID := completed.Metadata["buyerId"]
	if buyerID == "" {
		return nil, fmt.Errorf("%w: missing buyer", ErrTransactionInvalid)
	}
	credits, err := strconv.Atoi(completed.Metadata["credits"])
	if err != nil || credits <= 0 {
		return nil, fmt.Errorf("%w: bad credit amount %q", ErrTransactionInvalid, completed.Metadata["credits"])
	}

	tx := &model.Transaction{
		ID:                ulid.Make().String(),
		ProviderSessionID: completed.ID,
		Plan:              completed.Metadata["plan"],
		Credits:           credits,
		AmountCents:       completed.AmountTotal,
		BuyerID:           buyerID,
		CreatedAt:         time.Now().UTC(),
	}

	// The unique session id column is the idempotency guard: insert first,
	// grant only after the insert wins.
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrTransactionExists) {
			return nil, ErrDuplicateSession
		}
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if _, err := s.ledger.AdjustCreditBalance(ctx, buyerID, credits); err != nil {
		return nil, fmt.Errorf("failed to grant credits: %w", err)
	}

	return tx, nil
}

// ListPurchases returns the buyer's recent purchases, newest first.
func (s *TransactionService) ListPurchases(ctx context.Context, buyerID string, limit int) ([]*model.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txs, err := s.repo.ListTransactionsByBuyer(ctx, buyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
