package ledger

import (
	"errors"
	"fmt"
)

// Error kinds shared by every aggregate that touches balances.
// Aggregates wrap these so callers can branch with errors.Is.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalid           = errors.New("invalid input")
)

var (
	ErrInvalidKind   = fmt.Errorf("%w: transaction type must be 'gasto' or 'ingreso'", ErrInvalid)
	ErrInvalidAmount = fmt.Errorf("%w: amount must be greater than zero and at most 999999999999.99", ErrInvalid)

	ErrBalanceOutOfRange = fmt.Errorf("%w: resulting balance out of range", ErrInvalid)
)
