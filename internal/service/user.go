// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/repository"
)

// Service errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrValidation   = errors.New("validation failed")
)

// signupCreditGrant is the free-plan balance granted on account creation.
const signupCreditGrant = 10

// UserService mirrors identity provider accounts and owns the credit ledger.
type UserService struct {
	repo    *repository.Repository
	metrics metrics.Recorder
}

// NewUserService creates a new UserService.
func NewUserService(repo *repository.Repository, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{repo: repo, metrics: recorder}
}

// CreateUserInput defines input for mirroring a newly created account.
type CreateUserInput struct {
	ProviderID string
	Email      string
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}

// CreateUser mirrors an identity provider account into the local store,
// granting the signup credit balance.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	if input.ProviderID == "" || input.Email == "" {
		return nil, fmt.Errorf("%w: provider id and email are required", ErrValidation)
	}

	username := input.Username
	if username == "" {
		username = input.ProviderID
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:            ulid.Make().String(),
		ProviderID:    input.ProviderID,
		Email:         input.Email,
		Username:      username,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		PhotoURL:      input.PhotoURL,
		Plan:          model.PlanFree,
		CreditBalance: signupCreditGrant,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.AddCreditsGranted(signupCreditGrant)

	return user, nil
}

// UpdateUserInput defines input for profile updates from the identity provider.
type UpdateUserInput struct {
	ProviderID string
	Email      string
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}

// UpdateUser applies profile changes pushed by the identity provider.
func (s *UserService) UpdateUser(ctx context.Context, input UpdateUserInput) (*model.User, error) {
	user, err := s.repo.GetUserByProviderID(ctx, input.ProviderID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if input.Email != "" {
		user.Email = input.Email
	}
	if input.Username != "" {
		user.Username = input.Username
	}
	user.FirstName = input.FirstName
	user.LastName = input.LastName
	if input.PhotoURL != "" {
		user.PhotoURL = input.PhotoURL
	}

	if err := s.repo.UpdateUserByProviderID(ctx, input.ProviderID, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// DeleteUser removes the mirrored account. Owned images are removed by the
// database cascade.
func (s *UserService) DeleteUser(ctx context.Context, providerID string) error {
	if err := s.repo.DeleteUserByProviderID(ctx, providerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by local ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetUserByProviderID retrieves a user by the identity provider's ID.
func (s *UserService) GetUserByProviderID(ctx context.Context, providerID string) (*model.User, error) {
	user, err := s.repo.GetUserByProviderID(ctx, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Balance reads the current credit balance. The read is not a reservation:
// concurrent debits may still drive the balance below the read value.
func (s *UserService) Balance(ctx context.Context, userID string) (int, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.CreditBalance, nil
}

// AdjustCreditBalance atomically applies a signed delta to the user's
// balance and returns the new value. Negative results are allowed.
func (s *UserService) AdjustCreditBalance(ctx context.Context, userID string, delta int) (int, error) {
	balance, err := s.repo.AdjustCreditBalance(ctx, userID, delta)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to adjust credit balance: %w", err)
	}

	if delta < 0 {
		s.metrics.AddCreditsDebited(-delta)
	} else {
		s.metrics.AddCreditsGranted(delta)
	}

	return balance, nil
}
