// Package ledger holds the balance rule that keeps every account balance equal to
// the sum of incomes minus the sum of expenses currently linked to it.
//
// The package is pure: it never touches storage. Callers load the balances they
// need under lock, ask the rule for the resulting balances and persist them in the
// same database transaction.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction's effect on its account.
type Kind string

const (
	Expense Kind = "gasto"
	Income  Kind = "ingreso"
)

// ParseKind validates a raw type tag.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: got %q", ErrInvalidKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	return k == Expense || k == Income
}

// Entry is the part of a transaction the rule cares about.
type Entry struct {
	AccountID int64
	Kind      Kind
	Amount    decimal.Decimal
}

// Validate checks that the entry can be applied to a balance.
func (e Entry) Validate() error {
	if e.AccountID <= 0 {
		return fmt.Errorf("%w: valid account ID is required", ErrInvalid)
	}
	if !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Patch is a partial update of an Entry. Nil fields keep the current value.
type Patch struct {
	AccountID *int64
	Kind      *Kind
	Amount    *decimal.Decimal
}

// Moves reports whether the patch changes the entry's account.
func (p Patch) Moves(current Entry) bool {
	return p.AccountID != nil && *p.AccountID != current.AccountID
}

// Effect returns the signed delta the entry applies to its account balance.
func Effect(e Entry) decimal.Decimal {
	if e.Kind == Expense {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Apply adds the entry's effect to balance. An expense larger than the balance
// fails with ErrInsufficientFunds and the balance is returned unchanged, as
// does a result outside MaxAmount.
func Apply(balance decimal.Decimal, e Entry) (decimal.Decimal, error) {
	if e.Kind == Expense && balance.LessThan(e.Amount) {
		return balance, fmt.Errorf("%w: balance %s, expense %s",
			ErrInsufficientFunds, balance.StringFixed(MinorUnits), e.Amount.StringFixed(MinorUnits))
	}
	next := balance.Add(Effect(e))
	if err := CheckBalance(next); err != nil {
		return balance, err
	}
	return next, nil
}

// Reverse removes the entry's effect from balance. No funds check: reversing an
// income after the account was spent down may leave the balance negative.
func Reverse(balance decimal.Decimal, e Entry) decimal.Decimal {
	return balance.Sub(Effect(e))
}

// Merge resolves a patch against the current entry. Account, kind and amount
// each default independently to the current value.
func Merge(current Entry, p Patch) Entry {
	effective := current
	if p.AccountID != nil {
		effective.AccountID = *p.AccountID
	}
	if p.Kind != nil {
		effective.Kind = *p.Kind
	}
	if p.Amount != nil {
		effective.Amount = *p.Amount
	}
	return effective
}

// Outcome is the result of planning an update.
type Outcome struct {
	// Effective is the merged entry that will be persisted.
	Effective Entry
	// Balances holds the final balance of every account the update touches:
	// one entry when the account is unchanged, two when the transaction moves.
	Balances map[int64]decimal.Decimal
}

// Plan computes an update: reverse the current effect on its account, resolve
// the target account, then apply the effective entry with the funds check.
// balances must contain the current balance of every account involved; a
// missing target is reported as ErrNotFound.
func Plan(current Entry, p Patch, balances map[int64]decimal.Decimal) (Outcome, error) {
	effective := Merge(current, p)
	if err := effective.Validate(); err != nil {
		return Outcome{}, err
	}

	source, ok := balances[current.AccountID]
	if !ok {
		return Outcome{}, fmt.Errorf("account %d: %w", current.AccountID, ErrNotFound)
	}

	reversed := Reverse(source, current)
	if err := CheckBalance(reversed); err != nil {
		return Outcome{}, err
	}
	result := map[int64]decimal.Decimal{
		current.AccountID: reversed,
	}

	target, ok := result[effective.AccountID]
	if !ok {
		target, ok = balances[effective.AccountID]
		if !ok {
			return Outcome{}, fmt.Errorf("account %d: %w", effective.AccountID, ErrNotFound)
		}
	}

	applied, err := Apply(target, effective)
	if err != nil {
		return Outcome{}, err
	}
	result[effective.AccountID] = applied

	return Outcome{Effective: effective, Balances: result}, nil
}
