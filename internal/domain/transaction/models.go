package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"chreosis/internal/domain/ledger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
	maxNoteLength    = 500
)

// Domain errors
var (
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ledger.ErrNotFound)
	ErrAccountNotFound     = fmt.Errorf("account %w", ledger.ErrNotFound)
	ErrCategoryNotFound    = fmt.Errorf("category %w", ledger.ErrNotFound)
	ErrInvalidInput        = fmt.Errorf("transaction %w", ledger.ErrInvalid)
)

// Transaction is a single income or expense booked against one account.
type Transaction struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"userId"`
	AccountID  int64           `json:"accountId"`
	CategoryID int64           `json:"categoryId"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Type       ledger.Kind     `json:"type"`
	Note       *string         `json:"note,omitempty"`
	Attachment *string         `json:"attachment,omitempty"`
	Place      *string         `json:"place,omitempty"`
	Currency   *string         `json:"currency,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Entry returns the fields that drive the account balance.
func (t *Transaction) Entry() ledger.Entry {
	return ledger.Entry{AccountID: t.AccountID, Kind: t.Type, Amount: t.Amount}
}

// Detail is the listing view with account, category and owner names resolved.
type Detail struct {
	ID           int64           `json:"id"`
	AccountName  string          `json:"accountName"`
	CategoryName string          `json:"categoryName"`
	UserName     string          `json:"userName"`
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Type         ledger.Kind     `json:"type"`
	Note         *string         `json:"note,omitempty"`
	Attachment   *string         `json:"attachment,omitempty"`
}

// CreateParams contains parameters for booking a new transaction.
// A nil Date means now.
type CreateParams struct {
	UserID     int64
	AccountID  int64
	CategoryID int64
	Date       *time.Time
	Amount     decimal.Decimal
	Type       ledger.Kind
	Note       *string
	Attachment *string
	Place      *string
	Currency   *string
}

// Validate checks the parameters and rounds the amount to minor units.
func (p *CreateParams) Validate() error {
	if p.UserID <= 0 {
		return fmt.Errorf("%w: valid user ID is required", ErrInvalidInput)
	}
	if p.AccountID <= 0 {
		return fmt.Errorf("%w: accountId is required", ErrInvalidInput)
	}
	if p.CategoryID <= 0 {
		return fmt.Errorf("%w: categoryId is required", ErrInvalidInput)
	}
	if !p.Type.Valid() {
		return ledger.ErrInvalidKind
	}
	amount, err := ledger.NormalizeAmount(p.Amount)
	if err != nil {
		return err
	}
	p.Amount = amount
	return validateNote(p.Note)
}

// Entry is the ledger view of the transaction being created.
func (p CreateParams) Entry() ledger.Entry {
	return ledger.Entry{AccountID: p.AccountID, Kind: p.Type, Amount: p.Amount}
}

// UpdateParams is a partial update. Nil fields keep their current value.
type UpdateParams struct {
	AccountID  *int64
	CategoryID *int64
	Date       *time.Time
	Amount     *decimal.Decimal
	Type       *ledger.Kind
	Note       *string
	Attachment *string
}

// Validate checks the fields present in the update and rounds the amount.
func (p *UpdateParams) Validate() error {
	if p.AccountID == nil && p.CategoryID == nil && p.Date == nil && p.Amount == nil &&
		p.Type == nil && p.Note == nil && p.Attachment == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if p.AccountID != nil && *p.AccountID <= 0 {
		return fmt.Errorf("%w: invalid accountId", ErrInvalidInput)
	}
	if p.CategoryID != nil && *p.CategoryID <= 0 {
		return fmt.Errorf("%w: invalid categoryId", ErrInvalidInput)
	}
	if p.Type != nil && !p.Type.Valid() {
		return ledger.ErrInvalidKind
	}
	if p.Amount != nil {
		amount, err := ledger.NormalizeAmount(*p.Amount)
		if err != nil {
			return err
		}
		p.Amount = &amount
	}
	return validateNote(p.Note)
}

// Patch is the ledger view of the update.
func (p UpdateParams) Patch() ledger.Patch {
	return ledger.Patch{AccountID: p.AccountID, Kind: p.Type, Amount: p.Amount}
}

// Filter narrows a transaction listing.
type Filter struct {
	AccountID  *int64
	CategoryID *int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Normalize applies default and maximum page sizes.
func (f *Filter) Normalize() error {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return fmt.Errorf("%w: 'to' is before 'from'", ErrInvalidInput)
	}
	return nil
}

// BalanceChange is published after a ledger operation commits.
type BalanceChange struct {
	UserID    int64           `json:"userId"`
	AccountID int64           `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
	Operation string          `json:"operation"`
}

func validateNote(note *string) error {
	if note != nil && len(strings.TrimSpace(*note)) > maxNoteLength {
		return fmt.Errorf("%w: note must be at most %d characters", ErrInvalidInput, maxNoteLength)
	}
	return nil
}
