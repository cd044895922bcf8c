package transaction

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type memAccount struct {
	userID  int64
	balance decimal.Decimal
}

type memState struct {
	accounts     map[int64]memAccount
	categories   map[int64]int64
	transactions map[int64]Transaction
	nextID       int64
}

func (s memState) clone() memState {
	c := memState{
		accounts:     make(map[int64]memAccount, len(s.accounts)),
		categories:   make(map[int64]int64, len(s.categories)),
		transactions: make(map[int64]Transaction, len(s.transactions)),
		nextID:       s.nextID,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	return c
}

// memStore is an in-memory Store. Each WithinTx works on a copy of the state
// that replaces the committed state only when fn succeeds.
type memStore struct {
	mu        sync.Mutex
	state     memState
	published []BalanceChange

	failSetBalance error
	lockOrder      [][]int64
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		accounts:     map[int64]memAccount{},
		categories:   map[int64]int64{},
		transactions: map[int64]Transaction{},
		nextID:       1,
	}}
}

func (m *memStore) addAccount(id, userID int64, balance string) {
	m.state.accounts[id] = memAccount{userID: userID, balance: decimal.RequireFromString(balance)}
}

func (m *memStore) addCategory(id, userID int64) {
	m.state.categories[id] = userID
}

func (m *memStore) balance(id int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.accounts[id].balance
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.transactions)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	m.published = append(m.published, tx.pending...)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &t, nil
}

func (m *memStore) List(ctx context.Context, userID int64, filter Filter) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Transaction
	for _, t := range m.state.transactions {
		if t.UserID == userID {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) ListDetails(ctx context.Context, userID int64, filter Filter) ([]*Detail, error) {
	return nil, nil
}

type memTx struct {
	store   *memStore
	state   memState
	pending []BalanceChange
}

func (t *memTx) GetForUpdate(ctx context.Context, userID, id int64) (*Transaction, error) {
	tr, ok := t.state.transactions[id]
	if !ok || tr.UserID != userID {
		return nil, ErrTransactionNotFound
	}
	return &tr, nil
}

func (t *memTx) LockAccounts(ctx context.Context, userID int64, ids ...int64) (map[int64]decimal.Decimal, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	t.store.lockOrder = append(t.store.lockOrder, sorted)

	out := make(map[int64]decimal.Decimal, len(ids))
	for _, id := range sorted {
		acc, ok := t.state.accounts[id]
		if ok && acc.userID == userID {
			out[id] = acc.balance
		}
	}
	return out, nil
}

func (t *memTx) CategoryOwned(ctx context.Context, userID, categoryID int64) (bool, error) {
	owner, ok := t.state.categories[categoryID]
	return ok && owner == userID, nil
}

func (t *memTx) Insert(ctx context.Context, tr *Transaction) (*Transaction, error) {
	created := *tr
	created.ID = t.state.nextID
	t.state.nextID++
	t.state.transactions[created.ID] = created
	return &created, nil
}

func (t *memTx) Update(ctx context.Context, tr *Transaction) (*Transaction, error) {
	if _, ok := t.state.transactions[tr.ID]; !ok {
		return nil, ErrTransactionNotFound
	}
	t.state.transactions[tr.ID] = *tr
	return tr, nil
}

func (t *memTx) Delete(ctx context.Context, id int64) error {
	if _, ok := t.state.transactions[id]; !ok {
		return ErrTransactionNotFound
	}
	delete(t.state.transactions, id)
	return nil
}

func (t *memTx) SetBalance(ctx context.Context, change BalanceChange) error {
	if t.store.failSetBalance != nil {
		return t.store.failSetBalance
	}
	acc, ok := t.state.accounts[change.AccountID]
	if !ok {
		return errors.New("no such account")
	}
	acc.balance = change.Balance
	t.state.accounts[change.AccountID] = acc
	t.pending = append(t.pending, change)
	return nil
}
