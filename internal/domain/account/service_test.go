package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"chreosis/internal/domain/ledger"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	CreateFunc            func(ctx context.Context, params CreateParams) (*Account, error)
	GetByIDFunc           func(ctx context.Context, id int64) (*Account, error)
	ListByUserIDFunc      func(ctx context.Context, userID int64) ([]*Account, error)
	UpdateFunc            func(ctx context.Context, id int64, params UpdateParams) (*Account, error)
	DeleteFunc            func(ctx context.Context, id int64) error
	CountTransactionsFunc func(ctx context.Context, id int64) (int64, error)
}

func (m *MockRepository) Create(ctx context.Context, params CreateParams) (*Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrAccountNotFound
}

func (m *MockRepository) ListByUserID(ctx context.Context, userID int64) ([]*Account, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockRepository) Update(ctx context.Context, id int64, params UpdateParams) (*Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, params)
	}
	return nil, nil
}

func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockRepository) CountTransactions(ctx context.Context, id int64) (int64, error) {
	if m.CountTransactionsFunc != nil {
		return m.CountTransactionsFunc(ctx, id)
	}
	return 0, nil
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		params  CreateParams
		mock    func() *MockRepository
		wantErr bool
		errType error
	}{
		{
			name:   "Success",
			params: CreateParams{UserID: 1, Name: "  Wallet ", Type: "efectivo"},
			mock: func() *MockRepository {
				return &MockRepository{
					CreateFunc: func(ctx context.Context, params CreateParams) (*Account, error) {
						if params.Name != "Wallet" {
							t.Errorf("name not trimmed: %q", params.Name)
						}
						return &Account{
							ID:        10,
							UserID:    params.UserID,
							Name:      params.Name,
							Type:      params.Type,
							Balance:   decimal.Zero,
							CreatedAt: time.Now(),
							UpdatedAt: time.Now(),
						}, nil
					},
				}
			},
		},
		{
			name:    "Missing Name",
			params:  CreateParams{UserID: 1, Type: "banco"},
			mock:    func() *MockRepository { return &MockRepository{} },
			wantErr: true,
		},
		{
			name:    "Missing Type",
			params:  CreateParams{UserID: 1, Name: "Savings"},
			mock:    func() *MockRepository { return &MockRepository{} },
			wantErr: true,
		},
		{
			name:   "Duplicate Name",
			params: CreateParams{UserID: 1, Name: "Savings", Type: "banco"},
			mock: func() *MockRepository {
				return &MockRepository{
					CreateFunc: func(ctx context.Context, params CreateParams) (*Account, error) {
						return nil, ErrDuplicateName
					},
				}
			},
			wantErr: true,
			errType: ledger.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(tt.mock())

			acc, err := service.CreateAccount(ctx, tt.params)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("CreateAccount() expected error, got nil")
				}
				if tt.errType != nil && !errors.Is(err, tt.errType) {
					t.Errorf("CreateAccount() expected error %v, got %v", tt.errType, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateAccount() unexpected error: %v", err)
			}
			if !acc.Balance.IsZero() {
				t.Errorf("new account balance = %s, want 0", acc.Balance)
			}
		})
	}
}

func TestGetAccount(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		accountID int64
		userID    int64
		mock      func() *MockRepository
		wantErr   error
	}{
		{
			name:      "Success",
			accountID: 5,
			userID:    1,
			mock: func() *MockRepository {
				return &MockRepository{
					GetByIDFunc: func(ctx context.Context, id int64) (*Account, error) {
						return &Account{ID: id, UserID: 1}, nil
					},
				}
			},
		},
		{
			name:      "Not Found",
			accountID: 999,
			userID:    1,
			mock:      func() *MockRepository { return &MockRepository{} },
			wantErr:   ErrAccountNotFound,
		},
		{
			name:      "Owned By Another User",
			accountID: 5,
			userID:    2,
			mock: func() *MockRepository {
				return &MockRepository{
					GetByIDFunc: func(ctx context.Context, id int64) (*Account, error) {
						return &Account{ID: id, UserID: 1}, nil
					},
				}
			},
			wantErr: ledger.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(tt.mock())

			acc, err := service.GetAccount(ctx, tt.accountID, tt.userID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetAccount() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetAccount() unexpected error: %v", err)
			}
			if acc.ID != tt.accountID {
				t.Errorf("GetAccount() ID = %d, want %d", acc.ID, tt.accountID)
			}
		})
	}
}

func TestUpdateAccount(t *testing.T) {
	ctx := context.Background()
	name := "Checking"

	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*Account, error) {
			return &Account{ID: id, UserID: 1, Name: "Old"}, nil
		},
		UpdateFunc: func(ctx context.Context, id int64, params UpdateParams) (*Account, error) {
			return &Account{ID: id, UserID: 1, Name: *params.Name}, nil
		},
	}
	service := NewService(repo)

	acc, err := service.UpdateAccount(ctx, 3, 1, UpdateParams{Name: &name})
	if err != nil {
		t.Fatalf("UpdateAccount() unexpected error: %v", err)
	}
	if acc.Name != "Checking" {
		t.Errorf("UpdateAccount() name = %q, want %q", acc.Name, "Checking")
	}

	if _, err := service.UpdateAccount(ctx, 3, 1, UpdateParams{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("UpdateAccount() with empty params error = %v, want ErrInvalidInput", err)
	}

	if _, err := service.UpdateAccount(ctx, 3, 2, UpdateParams{Name: &name}); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("UpdateAccount() by other user error = %v, want ErrAccountNotFound", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		userID      int64
		count       int64
		wantErr     error
		wantDeleted bool
	}{
		{name: "Success", userID: 1, count: 0, wantDeleted: true},
		{name: "Blocked By Transactions", userID: 1, count: 3, wantErr: ErrAccountInUse},
		{name: "Other User", userID: 2, count: 0, wantErr: ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleted := false
			repo := &MockRepository{
				GetByIDFunc: func(ctx context.Context, id int64) (*Account, error) {
					return &Account{ID: id, UserID: 1}, nil
				},
				CountTransactionsFunc: func(ctx context.Context, id int64) (int64, error) {
					return tt.count, nil
				},
				DeleteFunc: func(ctx context.Context, id int64) error {
					deleted = true
					return nil
				},
			}

			err := NewService(repo).DeleteAccount(ctx, 7, tt.userID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("DeleteAccount() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("DeleteAccount() unexpected error: %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("repository Delete called = %v, want %v", deleted, tt.wantDeleted)
			}
		})
	}

	if !errors.Is(ErrAccountInUse, ledger.ErrConflict) {
		t.Error("ErrAccountInUse should be a conflict")
	}
}
