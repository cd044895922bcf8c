package user

import (
	"context"
	"errors"
	"fmt"
)

// Service handles registration, credentials and profile updates.
type Service struct {
	repo   Repository
	hasher PasswordHasher
}

func NewService(repo Repository, hasher PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// Register creates a password user.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, params.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.Create(ctx, CreateUserParams{
		Name:         params.Name,
		Email:        params.Email,
		PhoneNumber:  params.PhoneNumber,
		PasswordHash: hash,
	})
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, normalized)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Verify(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateUser changes profile fields. A new email must not belong to another user.
func (s *Service) UpdateUser(ctx context.Context, userID int64, params UpdateUserParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if params.Email != nil {
		existing, err := s.repo.GetByEmail(ctx, *params.Email)
		switch {
		case err == nil && existing.ID != userID:
			return nil, ErrEmailTaken
		case err != nil && !errors.Is(err, ErrUserNotFound):
			return nil, err
		}
	}

	return s.repo.Update(ctx, userID, params)
}

// DeleteUser removes the user with their accounts, categories, transactions,
// devices and mailbox.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	return s.repo.Delete(ctx, userID)
}
