//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"chreosis/internal/domain/account"
	"chreosis/internal/domain/category"
	"chreosis/internal/domain/ledger"
	"chreosis/internal/domain/notification"
	"chreosis/internal/domain/transaction"
	"chreosis/internal/domain/user"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := New(connStr, Pool{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := NewMigrator(db)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	return db
}

type fixture struct {
	user     *user.User
	checking *account.Account
	savings  *account.Account
	food     *category.Category
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	u, err := NewUserRepository(db).Create(ctx, user.CreateUserParams{Name: "Ana", Email: "ana@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	accounts := NewAccountRepository(db)
	checking, err := accounts.Create(ctx, account.CreateParams{UserID: u.ID, Name: "Checking", Type: "banco"})
	require.NoError(t, err)
	savings, err := accounts.Create(ctx, account.CreateParams{UserID: u.ID, Name: "Savings", Type: "banco"})
	require.NoError(t, err)

	food, err := NewCategoryRepository(db).Create(ctx, category.CreateParams{UserID: u.ID, Name: "Food", Type: "gasto"})
	require.NoError(t, err)

	return fixture{user: u, checking: checking, savings: savings, food: food}
}

func balanceOf(t *testing.T, db *DB, id int64) decimal.Decimal {
	t.Helper()
	acc, err := NewAccountRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func TestLedgerStore_Integration(t *testing.T) {
	db := setupDB(t)
	f := seed(t, db)
	ctx := context.Background()
	svc := transaction.NewService(NewTransactionRepository(db), NewLedgerStore(db))

	income, err := svc.Create(ctx, transaction.CreateParams{
		UserID: f.user.ID, AccountID: f.checking.ID, CategoryID: f.food.ID,
		Amount: decimal.NewFromInt(100), Type: ledger.Income,
	})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, db, f.checking.ID).Equal(decimal.NewFromInt(100)))

	_, err = svc.Create(ctx, transaction.CreateParams{
		UserID: f.user.ID, AccountID: f.savings.ID, CategoryID: f.food.ID,
		Amount: decimal.NewFromInt(1), Type: ledger.Expense,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	_, err = svc.Move(ctx, f.user.ID, income.ID, f.savings.ID)
	require.NoError(t, err)
	assert.True(t, balanceOf(t, db, f.checking.ID).IsZero())
	assert.True(t, balanceOf(t, db, f.savings.ID).Equal(decimal.NewFromInt(100)))

	err = NewAccountRepository(db).Delete(ctx, f.savings.ID)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	require.NoError(t, svc.Delete(ctx, f.user.ID, income.ID))
	assert.True(t, balanceOf(t, db, f.savings.ID).IsZero())

	drifts, err := NewReconciler(db).Check(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestLedgerStore_ConcurrentExpensesNeverOverdraw(t *testing.T) {
	db := setupDB(t)
	f := seed(t, db)
	ctx := context.Background()
	svc := transaction.NewService(NewTransactionRepository(db), NewLedgerStore(db))

	_, err := svc.Create(ctx, transaction.CreateParams{
		UserID: f.user.ID, AccountID: f.checking.ID, CategoryID: f.food.ID,
		Amount: decimal.NewFromInt(50), Type: ledger.Income,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, transaction.CreateParams{
				UserID: f.user.ID, AccountID: f.checking.ID, CategoryID: f.food.ID,
				Amount: decimal.NewFromInt(10), Type: ledger.Expense,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.True(t, balanceOf(t, db, f.checking.ID).IsZero())
}

func TestReconciler_FixesDrift(t *testing.T) {
	db := setupDB(t)
	f := seed(t, db)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `UPDATE accounts SET balance = 42 WHERE id = $1`, f.checking.ID)
	require.NoError(t, err)

	r := NewReconciler(db)
	drifts, err := r.Check(ctx, 0)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.True(t, drifts[0].Stored.Equal(decimal.NewFromInt(42)))

	fixed, err := r.Fix(ctx, drifts)
	require.NoError(t, err)
	assert.Len(t, fixed, 1)
	assert.True(t, balanceOf(t, db, f.checking.ID).IsZero())
}

func TestNotificationRepository_Integration(t *testing.T) {
	db := setupDB(t)
	f := seed(t, db)
	ctx := context.Background()
	repo := NewNotificationRepository(db)

	n, err := repo.CreateNotification(ctx, notificationParams(f.user.ID))
	require.NoError(t, err)
	assert.Len(t, n.ID, 36)

	list, total, err := repo.ListByUserID(ctx, f.user.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	require.NoError(t, repo.MarkOpened(ctx, n.ID, f.user.ID))
	assert.ErrorIs(t, repo.MarkOpened(ctx, "not-a-uuid", f.user.ID), ledger.ErrNotFound)
}

func notificationParams(userID int64) notification.CreateNotificationParams {
	return notification.CreateNotificationParams{
		UserID:   userID,
		Title:    "Gasto registrado",
		Message:  "Se registró un gasto",
		Category: notification.CategoryTransactions,
	}
}
