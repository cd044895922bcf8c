package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"chreosis/internal/domain/ledger"
)

const maxNameLength = 100

// Domain errors
var (
	ErrAccountNotFound = fmt.Errorf("account %w", ledger.ErrNotFound)
	ErrDuplicateName   = fmt.Errorf("account name already in use: %w", ledger.ErrConflict)
	ErrAccountInUse    = fmt.Errorf("account still has transactions: %w", ledger.ErrConflict)
	ErrInvalidInput    = fmt.Errorf("account %w", ledger.ErrInvalid)
)

// Account is a user-owned balance. Balance only changes through ledger
// operations on transactions.
type Account struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CreateParams contains parameters for creating a new account.
// New accounts always start at a zero balance.
type CreateParams struct {
	UserID int64
	Name   string
	Type   string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return fmt.Errorf("%w: valid user ID is required", ErrInvalidInput)
	}
	if err := validateName(p.Name); err != nil {
		return err
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("%w: account type is required", ErrInvalidInput)
	}
	return nil
}

// UpdateParams contains parameters for updating an account
type UpdateParams struct {
	Name *string
	Type *string
}

func (p UpdateParams) Validate() error {
	if p.Name == nil && p.Type == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Type != nil && strings.TrimSpace(*p.Type) == "" {
		return fmt.Errorf("%w: account type cannot be empty", ErrInvalidInput)
	}
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalidInput)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: account name must be at most %d characters", ErrInvalidInput, maxNameLength)
	}
	return nil
}
