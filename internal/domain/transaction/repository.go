package transaction

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository is the read side of transactions.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Transaction, error)
	List(ctx context.Context, userID int64, filter Filter) ([]*Transaction, error)
	ListDetails(ctx context.Context, userID int64, filter Filter) ([]*Detail, error)
}

// Store runs ledger operations atomically. fn runs inside a single database
// transaction: if it returns an error nothing it did is persisted.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of writes a ledger operation may perform inside a Store transaction.
type Tx interface {
	// GetForUpdate loads and row-locks a transaction owned by userID.
	// Returns ErrTransactionNotFound when it does not exist or belongs to someone else.
	GetForUpdate(ctx context.Context, userID, id int64) (*Transaction, error)

	// LockAccounts row-locks the given accounts in ascending id order and returns
	// their balances. Accounts that do not exist or are not owned by userID are
	// left out of the result.
	LockAccounts(ctx context.Context, userID int64, ids ...int64) (map[int64]decimal.Decimal, error)

	// CategoryOwned reports whether the category exists and belongs to userID.
	CategoryOwned(ctx context.Context, userID, categoryID int64) (bool, error)

	Insert(ctx context.Context, t *Transaction) (*Transaction, error)
	Update(ctx context.Context, t *Transaction) (*Transaction, error)
	Delete(ctx context.Context, id int64) error

	// SetBalance persists a new account balance and publishes a BalanceChange
	// that is delivered only if the surrounding transaction commits.
	SetBalance(ctx context.Context, change BalanceChange) error
}
