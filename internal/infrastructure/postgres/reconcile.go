package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"chreosis/internal/domain/transaction"
)

// Drift is an account whose stored balance disagrees with its transactions.
type Drift struct {
	AccountID int64
	UserID    int64
	Stored    decimal.Decimal
	Expected  decimal.Decimal
}

// Reconciler compares stored balances against the sum of their transactions.
type Reconciler struct {
	db *DB
}

func NewReconciler(db *DB) *Reconciler {
	return &Reconciler{db: db}
}

const expectedBalances = `
	SELECT a.id, a.user_id, a.balance,
	       COALESCE(SUM(CASE WHEN t.type = 'ingreso' THEN t.amount ELSE -t.amount END), 0) AS expected
	FROM accounts a
	LEFT JOIN transactions t ON t.account_id = a.id
	WHERE %s
	GROUP BY a.id, a.user_id, a.balance
	HAVING a.balance <> COALESCE(SUM(CASE WHEN t.type = 'ingreso' THEN t.amount ELSE -t.amount END), 0)
	ORDER BY a.id
`

// Check lists drifted accounts. A zero userID checks every user.
func (r *Reconciler) Check(ctx context.Context, userID int64) ([]Drift, error) {
	where, args := "TRUE", []any{}
	if userID != 0 {
		where, args = "a.user_id = $1", []any{userID}
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(expectedBalances, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute balances: %w", err)
	}
	defer rows.Close()
	return scanDrifts(rows)
}

// Fix rewrites the balance of each drifted account from its transactions.
// Accounts are locked in id order and recomputed under the lock.
func (r *Reconciler) Fix(ctx context.Context, drifts []Drift) ([]Drift, error) {
	if len(drifts) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(drifts))
	for i, d := range drifts {
		ids[i] = d.AccountID
	}

	var fixed []Drift
	err := r.db.withTx(ctx, "reconcile", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT id FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to lock accounts: %w", err)
		}

		rows, err := tx.QueryContext(ctx, fmt.Sprintf(expectedBalances, "a.id = ANY($1)"), pq.Array(ids))
		if err != nil {
			return fmt.Errorf("failed to compute balances: %w", err)
		}
		current, err := scanDrifts(rows)
		rows.Close()
		if err != nil {
			return err
		}

		for _, d := range current {
			err := setBalance(ctx, tx, transaction.BalanceChange{
				UserID:    d.UserID,
				AccountID: d.AccountID,
				Balance:   d.Expected,
				Operation: "reconcile",
			})
			if err != nil {
				return err
			}
		}
		fixed = current
		return nil
	})
	return fixed, err
}

func scanDrifts(rows *sql.Rows) ([]Drift, error) {
	var drifts []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.AccountID, &d.UserID, &d.Stored, &d.Expected); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balances: %w", err)
	}
	return drifts, nil
}
