package category

import (
	"context"
	"errors"
	"strings"
)

// Service contains the business logic for categories
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateCategory(ctx context.Context, params CreateParams) (*Category, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Type = strings.TrimSpace(params.Type)

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, params)
}

// GetCategory returns a category owned by userID. Foreign categories are reported as not found.
func (s *Service) GetCategory(ctx context.Context, categoryID, userID int64) (*Category, error) {
	c, err := s.repo.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrCategoryNotFound
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, userID int64) ([]*Category, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// EnsureCategory returns the user's category with the given name, creating it when missing.
func (s *Service) EnsureCategory(ctx context.Context, userID int64, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	c, err := s.repo.FindByName(ctx, userID, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCategoryNotFound) {
		return nil, err
	}

	c, err = s.repo.Create(ctx, CreateParams{UserID: userID, Name: name, Type: "gasto"})
	if errors.Is(err, ErrDuplicateName) {
		// created concurrently
		return s.repo.FindByName(ctx, userID, name)
	}
	return c, err
}

func (s *Service) UpdateCategory(ctx context.Context, categoryID, userID int64, params UpdateParams) (*Category, error) {
	if params.Name != nil {
		trimmed := strings.TrimSpace(*params.Name)
		params.Name = &trimmed
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.GetCategory(ctx, categoryID, userID); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, categoryID, params)
}

// DeleteCategory removes a category that no transaction references.
func (s *Service) DeleteCategory(ctx context.Context, categoryID, userID int64) error {
	if _, err := s.GetCategory(ctx, categoryID, userID); err != nil {
		return err
	}

	count, err := s.repo.CountTransactions(ctx, categoryID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoryInUse
	}

	return s.repo.Delete(ctx, categoryID)
}
