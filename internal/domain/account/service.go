package account

import (
	"context"
	"errors"
	"strings"
)

// Service contains the business logic for account operations
type Service struct {
	repo Repository
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateAccount creates a new account with business validation
func (s *Service) CreateAccount(ctx context.Context, params CreateParams) (*Account, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Type = strings.TrimSpace(params.Type)

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, params)
}

// GetAccount retrieves an account by ID and verifies user ownership.
// Accounts owned by someone else are reported as not found.
func (s *Service) GetAccount(ctx context.Context, accountID, userID int64) (*Account, error) {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if acc.UserID != userID {
		return nil, ErrAccountNotFound
	}

	return acc, nil
}

// ListAccountsByUserID retrieves all accounts for a specific user
func (s *Service) ListAccountsByUserID(ctx context.Context, userID int64) ([]*Account, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}

	return s.repo.ListByUserID(ctx, userID)
}

// UpdateAccount renames or retypes an account after verifying ownership
func (s *Service) UpdateAccount(ctx context.Context, accountID, userID int64, params UpdateParams) (*Account, error) {
	if params.Name != nil {
		trimmed := strings.TrimSpace(*params.Name)
		params.Name = &trimmed
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.GetAccount(ctx, accountID, userID); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, accountID, params)
}

// DeleteAccount deletes an account after verifying ownership.
// Accounts that still have transactions cannot be deleted: the caller must
// delete or move those transactions first so balances stay consistent.
func (s *Service) DeleteAccount(ctx context.Context, accountID, userID int64) error {
	if _, err := s.GetAccount(ctx, accountID, userID); err != nil {
		return err
	}

	count, err := s.repo.CountTransactions(ctx, accountID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAccountInUse
	}

	return s.repo.Delete(ctx, accountID)
}
