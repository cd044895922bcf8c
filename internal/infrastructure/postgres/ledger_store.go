package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"chreosis/internal/domain/transaction"
)

// BalanceChannel is the NOTIFY channel balance changes are published on.
const BalanceChannel = "account_balance_changed"

// LedgerStore runs ledger operations in a single database transaction.
// Rows are locked with SELECT ... FOR UPDATE: the transaction row first, then
// accounts in ascending id order, so concurrent operations cannot deadlock.
type LedgerStore struct {
	db *DB
}

func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx transaction.Tx) error) error {
	return s.db.withTx(ctx, "ledger", func(tx *sql.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx *sql.Tx
}

func (l *ledgerTx) GetForUpdate(ctx context.Context, userID, id int64) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2 FOR UPDATE`

	t, err := scanTransaction(l.tx.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}
	return t, nil
}

func (l *ledgerTx) LockAccounts(ctx context.Context, userID int64, ids ...int64) (map[int64]decimal.Decimal, error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := l.tx.QueryContext(ctx, `
		SELECT id, balance
		FROM accounts
		WHERE id = ANY($1) AND user_id = $2
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	balances := make(map[int64]decimal.Decimal, len(ids))
	for rows.Next() {
		var id int64
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan account balance: %w", err)
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locked accounts: %w", err)
	}
	return balances, nil
}

func (l *ledgerTx) CategoryOwned(ctx context.Context, userID, categoryID int64) (bool, error) {
	var owned bool
	err := l.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1 AND user_id = $2)`,
		categoryID, userID,
	).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("failed to check category: %w", err)
	}
	return owned, nil
}

func (l *ledgerTx) Insert(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	query := `
		INSERT INTO transactions (user_id, account_id, category_id, date, amount, type, note, attachment, place, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + transactionColumns

	created, err := scanTransaction(l.tx.QueryRowContext(ctx, query,
		t.UserID, t.AccountID, t.CategoryID, t.Date, t.Amount, t.Type,
		nullString(t.Note), nullString(t.Attachment), nullString(t.Place), nullString(t.Currency),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return created, nil
}

func (l *ledgerTx) Update(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	query := `
		UPDATE transactions
		SET account_id = $1, category_id = $2, date = $3, amount = $4, type = $5,
		    note = $6, attachment = $7, place = $8, currency = $9, updated_at = CURRENT_TIMESTAMP
		WHERE id = $10
		RETURNING ` + transactionColumns

	updated, err := scanTransaction(l.tx.QueryRowContext(ctx, query,
		t.AccountID, t.CategoryID, t.Date, t.Amount, t.Type,
		nullString(t.Note), nullString(t.Attachment), nullString(t.Place), nullString(t.Currency),
		t.ID,
	))
	if err == sql.ErrNoRows {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	return updated, nil
}

func (l *ledgerTx) Delete(ctx context.Context, id int64) error {
	result, err := l.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

func (l *ledgerTx) SetBalance(ctx context.Context, change transaction.BalanceChange) error {
	return setBalance(ctx, l.tx, change)
}

// setBalance writes the balance and queues a NOTIFY that Postgres delivers
// only when the transaction commits.
func setBalance(ctx context.Context, tx *sql.Tx, change transaction.BalanceChange) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND user_id = $3`,
		change.Balance, change.AccountID, change.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to set account balance: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return transaction.ErrAccountNotFound
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode balance change: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, BalanceChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to publish balance change: %w", err)
	}
	return nil
}
