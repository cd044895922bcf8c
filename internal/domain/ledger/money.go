package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of decimal places kept for every stored amount.
const MinorUnits = 2

// MaxAmount is the largest magnitude a NUMERIC(14,2) amount or balance holds.
var MaxAmount = decimal.New(1, 12).Sub(decimal.New(1, -MinorUnits))

// NormalizeAmount validates a transaction amount and rounds it to minor units.
// Amounts are always positive; the direction comes from the Kind.
func NormalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(MinorUnits)
	if !rounded.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount.String())
	}
	if rounded.GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, amount.String(), MaxAmount.StringFixed(MinorUnits))
	}
	return rounded, nil
}

// CheckBalance rejects balances the accounts table cannot store.
func CheckBalance(balance decimal.Decimal) error {
	if balance.Abs().GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: %s", ErrBalanceOutOfRange, balance.StringFixed(MinorUnits))
	}
	return nil
}

// ParseAmount parses a decimal string such as "125.40" into a normalized amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return NormalizeAmount(d)
}
