package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"chreosis/internal/domain/transaction"
)

// TransactionRepository is the read side of transactions. Writes go through
// LedgerStore so balances move with them.
type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, user_id, account_id, category_id, date, amount, type, note, attachment, place, currency, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var note, attachment, place, currency sql.NullString

	err := row.Scan(
		&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Date, &t.Amount, &t.Type,
		&note, &attachment, &place, &currency,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Note = stringPtr(note)
	t.Attachment = stringPtr(attachment)
	t.Place = stringPtr(place)
	t.Currency = stringPtr(currency)
	return &t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// List returns a user's transactions, newest first.
func (r *TransactionRepository) List(ctx context.Context, userID int64, filter transaction.Filter) ([]*transaction.Transaction, error) {
	where, args := filterClause("", userID, filter)
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE %s
		ORDER BY date DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, transactionColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*transaction.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// ListDetails returns the listing view with account, category and user names.
func (r *TransactionRepository) ListDetails(ctx context.Context, userID int64, filter transaction.Filter) ([]*transaction.Detail, error) {
	where, args := filterClause("t.", userID, filter)
	query := fmt.Sprintf(`
		SELECT t.id, a.name, c.name, u.name, t.date, t.amount, t.type, t.note, t.attachment
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		JOIN categories c ON c.id = t.category_id
		JOIN users u ON u.id = t.user_id
		WHERE %s
		ORDER BY t.date DESC, t.id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction details: %w", err)
	}
	defer rows.Close()

	details := []*transaction.Detail{}
	for rows.Next() {
		var d transaction.Detail
		var note, attachment sql.NullString
		if err := rows.Scan(&d.ID, &d.AccountName, &d.CategoryName, &d.UserName, &d.Date, &d.Amount, &d.Type, &note, &attachment); err != nil {
			return nil, fmt.Errorf("failed to scan transaction detail: %w", err)
		}
		d.Note = stringPtr(note)
		d.Attachment = stringPtr(attachment)
		details = append(details, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction details: %w", err)
	}
	return details, nil
}

func filterClause(prefix string, userID int64, f transaction.Filter) (string, []any) {
	clauses := []string{prefix + "user_id = $1"}
	args := []any{userID}

	add := func(cond string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("%s%s $%d", prefix, cond, len(args)))
	}
	if f.AccountID != nil {
		add("account_id =", *f.AccountID)
	}
	if f.CategoryID != nil {
		add("category_id =", *f.CategoryID)
	}
	if f.From != nil {
		add("date >=", *f.From)
	}
	if f.To != nil {
		add("date <=", *f.To)
	}
	return strings.Join(clauses, " AND "), args
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
