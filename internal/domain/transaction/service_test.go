package transaction

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chreosis/internal/domain/ledger"
)

const (
	alice int64 = 1
	bob   int64 = 2

	checking int64 = 10
	savings  int64 = 11
	bobs     int64 = 20

	food    int64 = 100
	bobsCat int64 = 200
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	store.addAccount(checking, alice, "100")
	store.addAccount(savings, alice, "0")
	store.addAccount(bobs, bob, "500")
	store.addCategory(food, alice)
	store.addCategory(bobsCat, bob)
	return NewService(store, store), store
}

func expense(account int64, amount string) CreateParams {
	return CreateParams{UserID: alice, AccountID: account, CategoryID: food, Type: ledger.Expense, Amount: d(amount)}
}

func income(account int64, amount string) CreateParams {
	return CreateParams{UserID: alice, AccountID: account, CategoryID: food, Type: ledger.Income, Amount: d(amount)}
}

func assertBalance(t *testing.T, store *memStore, account int64, want string) {
	t.Helper()
	got := store.balance(account)
	assert.Truef(t, got.Equal(d(want)), "balance of account %d = %s, want %s", account, got, want)
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name        string
		params      CreateParams
		wantErr     error
		wantBalance string
	}{
		{name: "expense within balance", params: expense(checking, "30"), wantBalance: "70"},
		{name: "expense of the whole balance", params: expense(checking, "100"), wantBalance: "0"},
		{name: "income", params: income(checking, "25.50"), wantBalance: "125.50"},
		{name: "amount rounded to cents", params: income(checking, "0.005"), wantBalance: "100.01"},
		{name: "insufficient funds", params: expense(checking, "100.01"), wantErr: ledger.ErrInsufficientFunds, wantBalance: "100"},
		{name: "foreign account", params: expense(bobs, "1"), wantErr: ledger.ErrNotFound, wantBalance: "100"},
		{name: "missing account", params: expense(999, "1"), wantErr: ErrAccountNotFound, wantBalance: "100"},
		{
			name:        "foreign category",
			params:      CreateParams{UserID: alice, AccountID: checking, CategoryID: bobsCat, Type: ledger.Income, Amount: d("5")},
			wantErr:     ErrCategoryNotFound,
			wantBalance: "100",
		},
		{
			name:        "invalid kind",
			params:      CreateParams{UserID: alice, AccountID: checking, CategoryID: food, Type: "transfer", Amount: d("5")},
			wantErr:     ledger.ErrInvalidKind,
			wantBalance: "100",
		},
		{name: "zero amount", params: expense(checking, "0"), wantErr: ledger.ErrInvalid, wantBalance: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)

			created, err := svc.Create(context.Background(), tt.params)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, created)
				assert.Equal(t, 0, store.count())
				assert.Empty(t, store.published)
			} else {
				require.NoError(t, err)
				assert.Equal(t, alice, created.UserID)
				assert.Equal(t, 1, store.count())
				require.Len(t, store.published, 1)
				assert.Equal(t, OpCreate, store.published[0].Operation)
			}
			assertBalance(t, store, checking, tt.wantBalance)
		})
	}
}

func TestCreate_DateDefaultsToNow(t *testing.T) {
	svc, _ := newTestService(t)
	fixed := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	created, err := svc.Create(context.Background(), income(checking, "1"))
	require.NoError(t, err)
	assert.Equal(t, fixed, created.Date)

	explicit := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p := income(checking, "1")
	p.Date = &explicit
	created, err = svc.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, explicit, created.Date)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("expense restores balance", func(t *testing.T) {
		svc, store := newTestService(t)
		created, err := svc.Create(ctx, expense(checking, "40"))
		require.NoError(t, err)
		assertBalance(t, store, checking, "60")

		require.NoError(t, svc.Delete(ctx, alice, created.ID))
		assertBalance(t, store, checking, "100")
		assert.Equal(t, 0, store.count())
	})

	t.Run("income may go negative", func(t *testing.T) {
		svc, store := newTestService(t)
		in, err := svc.Create(ctx, income(savings, "50"))
		require.NoError(t, err)
		_, err = svc.Create(ctx, expense(savings, "45"))
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, alice, in.ID))
		assertBalance(t, store, savings, "-45")
	})

	t.Run("other user's transaction", func(t *testing.T) {
		svc, store := newTestService(t)
		created, err := svc.Create(ctx, expense(checking, "10"))
		require.NoError(t, err)

		err = svc.Delete(ctx, bob, created.ID)
		require.ErrorIs(t, err, ErrTransactionNotFound)
		assertBalance(t, store, checking, "90")
	})

	t.Run("unknown transaction", func(t *testing.T) {
		svc, _ := newTestService(t)
		require.ErrorIs(t, svc.Delete(ctx, alice, 12345), ledger.ErrNotFound)
	})
}

func TestUpdate_SameAccount(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	created, err := svc.Create(ctx, expense(checking, "30"))
	require.NoError(t, err)
	assertBalance(t, store, checking, "70")

	updated, err := svc.Update(ctx, alice, created.ID, UpdateParams{Amount: ptr(d("45"))})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(d("45")))
	assertBalance(t, store, checking, "55")

	// the reversed balance (100) is what the funds check sees
	_, err = svc.Update(ctx, alice, created.ID, UpdateParams{Amount: ptr(d("100"))})
	require.NoError(t, err)
	assertBalance(t, store, checking, "0")

	_, err = svc.Update(ctx, alice, created.ID, UpdateParams{Amount: ptr(d("100.01"))})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assertBalance(t, store, checking, "0")
}

func TestUpdate_KindFlip(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	created, err := svc.Create(ctx, expense(checking, "20"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, alice, created.ID, UpdateParams{Type: ptr(ledger.Income)})
	require.NoError(t, err)
	assert.Equal(t, ledger.Income, updated.Type)
	assert.True(t, updated.Amount.Equal(d("20")), "amount defaults to the current value")
	assertBalance(t, store, checking, "120")
}

func TestUpdate_NonLedgerFields(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	store.addCategory(101, alice)

	created, err := svc.Create(ctx, expense(checking, "20"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, alice, created.ID, UpdateParams{Note: ptr("lunch"), CategoryID: ptr(int64(101))})
	require.NoError(t, err)
	assert.Equal(t, "lunch", *updated.Note)
	assert.Equal(t, int64(101), updated.CategoryID)
	assertBalance(t, store, checking, "80")

	_, err = svc.Update(ctx, alice, created.ID, UpdateParams{CategoryID: ptr(bobsCat)})
	require.ErrorIs(t, err, ErrCategoryNotFound)

	_, err = svc.Update(ctx, alice, created.ID, UpdateParams{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMove(t *testing.T) {
	ctx := context.Background()

	t.Run("moves effect between accounts", func(t *testing.T) {
		svc, store := newTestService(t)
		created, err := svc.Create(ctx, income(checking, "40"))
		require.NoError(t, err)
		assertBalance(t, store, checking, "140")

		moved, err := svc.Move(ctx, alice, created.ID, savings)
		require.NoError(t, err)
		assert.Equal(t, savings, moved.AccountID)
		assertBalance(t, store, checking, "100")
		assertBalance(t, store, savings, "40")
		assert.Equal(t, []int64{checking, savings}, store.lockOrder[len(store.lockOrder)-1])
	})

	t.Run("insufficient funds on target leaves both balances", func(t *testing.T) {
		svc, store := newTestService(t)
		created, err := svc.Create(ctx, expense(checking, "60"))
		require.NoError(t, err)
		published := len(store.published)

		_, err = svc.Move(ctx, alice, created.ID, savings)
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		assertBalance(t, store, checking, "40")
		assertBalance(t, store, savings, "0")
		assert.Len(t, store.published, published)

		got, err := svc.Get(ctx, alice, created.ID)
		require.NoError(t, err)
		assert.Equal(t, checking, got.AccountID)
	})

	t.Run("foreign target is not found", func(t *testing.T) {
		svc, store := newTestService(t)
		created, err := svc.Create(ctx, expense(checking, "10"))
		require.NoError(t, err)

		_, err = svc.Move(ctx, alice, created.ID, bobs)
		require.ErrorIs(t, err, ledger.ErrNotFound)
		assertBalance(t, store, checking, "90")
		assertBalance(t, store, bobs, "500")
	})

	t.Run("move with amount change", func(t *testing.T) {
		svc, store := newTestService(t)
		store.addAccount(savings, alice, "50")
		created, err := svc.Create(ctx, expense(checking, "10"))
		require.NoError(t, err)

		_, err = svc.Update(ctx, alice, created.ID, UpdateParams{AccountID: ptr(savings), Amount: ptr(d("50"))})
		require.NoError(t, err)
		assertBalance(t, store, checking, "100")
		assertBalance(t, store, savings, "0")
	})
}

func TestAtomicity_FailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	store.failSetBalance = errors.New("connection reset")

	_, err := svc.Create(ctx, expense(checking, "10"))
	require.Error(t, err)
	assert.Equal(t, 0, store.count())
	assertBalance(t, store, checking, "100")
	assert.Empty(t, store.published)
}

func TestGet_ForeignIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created, err := svc.Create(ctx, expense(checking, "10"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, created.ID)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestList_NormalizesFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, income(checking, "1"))
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, alice, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err = svc.List(ctx, alice, Filter{From: &from, To: &to})
	require.ErrorIs(t, err, ErrInvalidInput)
}

// Every account balance must equal incomes minus expenses linked to it,
// whatever sequence of operations succeeded or failed.
func TestBalanceMatchesTransactions_RandomOperations(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	rng := rand.New(rand.NewSource(42))
	accounts := []int64{checking, savings}
	var ids []int64

	for i := 0; i < 300; i++ {
		amount := decimal.New(int64(rng.Intn(5000)+1), -2)
		account := accounts[rng.Intn(len(accounts))]
		kind := ledger.Expense
		if rng.Intn(2) == 0 {
			kind = ledger.Income
		}

		switch op := rng.Intn(4); {
		case op == 0 || len(ids) == 0:
			created, err := svc.Create(ctx, CreateParams{UserID: alice, AccountID: account, CategoryID: food, Type: kind, Amount: amount})
			if err == nil {
				ids = append(ids, created.ID)
			} else {
				require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
			}
		case op == 1:
			idx := rng.Intn(len(ids))
			require.NoError(t, svc.Delete(ctx, alice, ids[idx]))
			ids = append(ids[:idx], ids[idx+1:]...)
		case op == 2:
			_, err := svc.Update(ctx, alice, ids[rng.Intn(len(ids))], UpdateParams{Amount: &amount, Type: &kind})
			if err != nil {
				require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
			}
		default:
			_, err := svc.Move(ctx, alice, ids[rng.Intn(len(ids))], account)
			if err != nil {
				require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
			}
		}

		want := map[int64]decimal.Decimal{checking: d("100"), savings: d("0")}
		for _, tr := range store.state.transactions {
			want[tr.AccountID] = want[tr.AccountID].Add(ledger.Effect(tr.Entry()))
		}
		for _, acc := range accounts {
			require.Truef(t, store.balance(acc).Equal(want[acc]),
				"step %d: account %d balance %s, transactions sum %s", i, acc, store.balance(acc), want[acc])
		}
	}
}
