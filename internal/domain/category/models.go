package category

import (
	"fmt"
	"strings"
	"time"

	"chreosis/internal/domain/ledger"
)

const maxNameLength = 100

// Domain errors
var (
	ErrCategoryNotFound = fmt.Errorf("category %w", ledger.ErrNotFound)
	ErrDuplicateName    = fmt.Errorf("category name already in use: %w", ledger.ErrConflict)
	ErrCategoryInUse    = fmt.Errorf("category still has transactions: %w", ledger.ErrConflict)
	ErrInvalidInput     = fmt.Errorf("category %w", ledger.ErrInvalid)
)

// Category groups transactions. Type is a free-form tag chosen by the user.
type Category struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateParams struct {
	UserID int64
	Name   string
	Type   string
}

func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return fmt.Errorf("%w: valid user ID is required", ErrInvalidInput)
	}
	return validateName(p.Name)
}

type UpdateParams struct {
	Name *string
	Type *string
}

func (p UpdateParams) Validate() error {
	if p.Name == nil && p.Type == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if p.Name != nil {
		return validateName(*p.Name)
	}
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: category name must be at most %d characters", ErrInvalidInput, maxNameLength)
	}
	return nil
}
