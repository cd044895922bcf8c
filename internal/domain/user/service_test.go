package user

import (
	"context"
	"errors"
	"testing"

	"chreosis/internal/domain/ledger"
)

type MockRepository struct {
	CreateFunc     func(ctx context.Context, params CreateUserParams) (*User, error)
	GetByIDFunc    func(ctx context.Context, id int64) (*User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*User, error)
	UpdateFunc     func(ctx context.Context, userID int64, params UpdateUserParams) (*User, error)
	DeleteFunc     func(ctx context.Context, userID int64) error
}

func (m *MockRepository) Create(ctx context.Context, params CreateUserParams) (*User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &User{ID: 1, Name: params.Name, Email: params.Email, PasswordHash: params.PasswordHash}, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrUserNotFound
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, ErrUserNotFound
}

func (m *MockRepository) Update(ctx context.Context, userID int64, params UpdateUserParams) (*User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, userID, params)
	}
	return &User{ID: userID}, nil
}

func (m *MockRepository) Delete(ctx context.Context, userID int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

// plainHasher stores passwords with a prefix so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Verify(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"Secret123", false},
		{"Abcdefg1", false},
		{"Abcdef1", true},               // too short
		{"Abcdefghijklmnopqrs12", true}, // too long
		{"secret123", true},             // no uppercase
		{"SecretPassword", true},        // no digit
		{"Ñandú2024", false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ledger.ErrInvalid) {
				t.Errorf("ValidatePassword(%q) error should be an invalid input error", tt.password)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Ana@Example.com", want: "ana@example.com"},
		{in: "  ana@example.com ", want: "ana@example.com"},
		{in: "not-an-email", wantErr: true},
		{in: "Ana <ana@example.com>", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeEmail(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		params  RegisterParams
		mock    func() *MockRepository
		wantErr error
	}{
		{
			name:   "Success",
			params: RegisterParams{Name: "Ana", Email: "Ana@example.com", Password: "Secret123"},
			mock: func() *MockRepository {
				return &MockRepository{
					CreateFunc: func(ctx context.Context, params CreateUserParams) (*User, error) {
						if params.Email != "ana@example.com" {
							t.Errorf("email not normalized: %q", params.Email)
						}
						if params.PasswordHash != "hashed:Secret123" {
							t.Errorf("password not hashed: %q", params.PasswordHash)
						}
						return &User{ID: 7, Name: params.Name, Email: params.Email}, nil
					},
				}
			},
		},
		{
			name:    "Weak Password",
			params:  RegisterParams{Name: "Ana", Email: "ana@example.com", Password: "password"},
			mock:    func() *MockRepository { return &MockRepository{} },
			wantErr: ErrWeakPassword,
		},
		{
			name:    "Missing Name",
			params:  RegisterParams{Email: "ana@example.com", Password: "Secret123"},
			mock:    func() *MockRepository { return &MockRepository{} },
			wantErr: ErrInvalidInput,
		},
		{
			name:   "Email Taken",
			params: RegisterParams{Name: "Ana", Email: "ana@example.com", Password: "Secret123"},
			mock: func() *MockRepository {
				return &MockRepository{
					GetByEmailFunc: func(ctx context.Context, email string) (*User, error) {
						return &User{ID: 3, Email: email}, nil
					},
				}
			},
			wantErr: ledger.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.mock(), plainHasher{})
			u, err := svc.Register(ctx, tt.params)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Register() unexpected error: %v", err)
			}
			if u.ID != 7 {
				t.Errorf("Register() ID = %d, want 7", u.ID)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := &MockRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*User, error) {
			if email == "ana@example.com" {
				return &User{ID: 1, Email: email, PasswordHash: "hashed:Secret123"}, nil
			}
			return nil, ErrUserNotFound
		},
	}
	svc := NewService(repo, plainHasher{})

	if u, err := svc.Authenticate(ctx, "ANA@example.com", "Secret123"); err != nil || u.ID != 1 {
		t.Errorf("Authenticate() = %v, %v; want user 1", u, err)
	}
	if _, err := svc.Authenticate(ctx, "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() wrong password error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "bob@example.com", "Secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() unknown email error = %v", err)
	}
}

func TestUpdateUser_EmailUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := &MockRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*User, error) {
			switch email {
			case "taken@example.com":
				return &User{ID: 2, Email: email}, nil
			case "mine@example.com":
				return &User{ID: 1, Email: email}, nil
			}
			return nil, ErrUserNotFound
		},
		UpdateFunc: func(ctx context.Context, userID int64, params UpdateUserParams) (*User, error) {
			return &User{ID: userID, Email: *params.Email}, nil
		},
	}
	svc := NewService(repo, plainHasher{})

	tests := []struct {
		email   string
		wantErr error
	}{
		{email: "taken@example.com", wantErr: ErrEmailTaken},
		{email: "mine@example.com"},
		{email: "new@example.com"},
		{email: "bad", wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			email := tt.email
			_, err := svc.UpdateUser(ctx, 1, UpdateUserParams{Email: &email})
			if tt.wantErr == nil && err != nil {
				t.Errorf("UpdateUser() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("UpdateUser() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
