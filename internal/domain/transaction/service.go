package transaction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"chreosis/internal/domain/ledger"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpMove   = "move"
	OpDelete = "delete"
)

var (
	ledgerMeter  = otel.Meter("chreosis/ledger")
	ledgerOps, _ = ledgerMeter.Int64Counter("ledger.operations", metric.WithDescription("Ledger operations by type and outcome"))
)

// Service books transactions and keeps account balances in step with them.
// Every write runs as one Store transaction: the transaction row is locked
// first, then the accounts it touches in ascending id order.
type Service struct {
	repo  Repository
	store Store
	now   func() time.Time
}

func NewService(repo Repository, store Store) *Service {
	return &Service{
		repo:  repo,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create books a new transaction. An expense larger than the account balance
// fails with ledger.ErrInsufficientFunds and nothing is written.
func (s *Service) Create(ctx context.Context, params CreateParams) (created *Transaction, err error) {
	defer func() { record(ctx, OpCreate, err) }()

	if err := params.Validate(); err != nil {
		return nil, err
	}

	date := s.now()
	if params.Date != nil {
		date = params.Date.UTC()
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := s.checkCategory(ctx, tx, params.UserID, params.CategoryID); err != nil {
			return err
		}

		balances, err := tx.LockAccounts(ctx, params.UserID, params.AccountID)
		if err != nil {
			return err
		}
		balance, ok := balances[params.AccountID]
		if !ok {
			return ErrAccountNotFound
		}

		entry := params.Entry()
		next, err := ledger.Apply(balance, entry)
		if err != nil {
			return err
		}

		created, err = tx.Insert(ctx, &Transaction{
			UserID:     params.UserID,
			AccountID:  params.AccountID,
			CategoryID: params.CategoryID,
			Date:       date,
			Amount:     entry.Amount,
			Type:       entry.Kind,
			Note:       params.Note,
			Attachment: params.Attachment,
			Place:      params.Place,
			Currency:   params.Currency,
		})
		if err != nil {
			return err
		}

		return tx.SetBalance(ctx, BalanceChange{
			UserID:    params.UserID,
			AccountID: params.AccountID,
			Balance:   next,
			Operation: OpCreate,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Int64("user_id", params.UserID).Int64("transaction_id", created.ID).
		Str("type", string(created.Type)).Str("amount", created.Amount.StringFixed(ledger.MinorUnits)).
		Msg("transaction created")
	return created, nil
}

// Update applies a partial update. The old effect is reversed on the current
// account, the target account is resolved and the effective transaction is
// applied with the funds check. Any failure leaves every balance untouched.
func (s *Service) Update(ctx context.Context, userID, id int64, params UpdateParams) (*Transaction, error) {
	t, err := s.update(ctx, userID, id, params)
	record(ctx, OpUpdate, err)
	return t, err
}

// Move relinks a transaction to another account of the same user.
func (s *Service) Move(ctx context.Context, userID, id, toAccountID int64) (*Transaction, error) {
	t, err := s.update(ctx, userID, id, UpdateParams{AccountID: &toAccountID})
	record(ctx, OpMove, err)
	return t, err
}

func (s *Service) update(ctx context.Context, userID, id int64, params UpdateParams) (updated *Transaction, err error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}

		patch := params.Patch()
		ids := []int64{current.AccountID}
		if patch.Moves(current.Entry()) {
			ids = append(ids, *patch.AccountID)
		}

		balances, err := tx.LockAccounts(ctx, userID, ids...)
		if err != nil {
			return err
		}
		if params.AccountID != nil {
			if _, ok := balances[*params.AccountID]; !ok {
				return ErrAccountNotFound
			}
		}

		if params.CategoryID != nil && *params.CategoryID != current.CategoryID {
			if err := s.checkCategory(ctx, tx, userID, *params.CategoryID); err != nil {
				return err
			}
		}

		outcome, err := ledger.Plan(current.Entry(), patch, balances)
		if err != nil {
			return err
		}

		next := merge(current, params, outcome.Effective)
		updated, err = tx.Update(ctx, next)
		if err != nil {
			return err
		}

		op := OpUpdate
		if patch.Moves(current.Entry()) {
			op = OpMove
		}
		return setBalances(ctx, tx, userID, outcome.Balances, op)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a transaction and reverses its effect. No funds check is made,
// so deleting an income may leave the account negative.
func (s *Service) Delete(ctx context.Context, userID, id int64) (err error) {
	defer func() { record(ctx, OpDelete, err) }()

	return s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}

		balances, err := tx.LockAccounts(ctx, userID, current.AccountID)
		if err != nil {
			return err
		}
		balance, ok := balances[current.AccountID]
		if !ok {
			return ErrAccountNotFound
		}

		reversed := ledger.Reverse(balance, current.Entry())
		if err := ledger.CheckBalance(reversed); err != nil {
			return err
		}
		if err := tx.Delete(ctx, current.ID); err != nil {
			return err
		}

		return tx.SetBalance(ctx, BalanceChange{
			UserID:    userID,
			AccountID: current.AccountID,
			Balance:   reversed,
			Operation: OpDelete,
		})
	})
}

// Get returns a transaction owned by userID.
func (s *Service) Get(ctx context.Context, userID, id int64) (*Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrTransactionNotFound
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, userID int64, filter Filter) ([]*Transaction, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID, filter)
}

// ListDetails lists transactions with account, category and user names.
func (s *Service) ListDetails(ctx context.Context, userID int64, filter Filter) ([]*Detail, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}
	return s.repo.ListDetails(ctx, userID, filter)
}

func (s *Service) checkCategory(ctx context.Context, tx Tx, userID, categoryID int64) error {
	ok, err := tx.CategoryOwned(ctx, userID, categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCategoryNotFound
	}
	return nil
}

func merge(current *Transaction, params UpdateParams, effective ledger.Entry) *Transaction {
	next := *current
	next.AccountID = effective.AccountID
	next.Type = effective.Kind
	next.Amount = effective.Amount
	if params.CategoryID != nil {
		next.CategoryID = *params.CategoryID
	}
	if params.Date != nil {
		next.Date = params.Date.UTC()
	}
	if params.Note != nil {
		next.Note = params.Note
	}
	if params.Attachment != nil {
		next.Attachment = params.Attachment
	}
	return &next
}

func setBalances(ctx context.Context, tx Tx, userID int64, balances map[int64]decimal.Decimal, op string) error {
	ids := make([]int64, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := tx.SetBalance(ctx, BalanceChange{
			UserID:    userID,
			AccountID: id,
			Balance:   balances[id],
			Operation: op,
		}); err != nil {
			return fmt.Errorf("failed to set balance of account %d: %w", id, err)
		}
	}
	return nil
}

func record(ctx context.Context, op string, err error) {
	ledgerOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome(err)),
	))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrConflict):
		return "conflict"
	case errors.Is(err, ledger.ErrInvalid):
		return "invalid"
	default:
		return "error"
	}
}
