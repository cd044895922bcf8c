package user

import "context"

// Repository defines the interface for user data access
type Repository interface {
	// Create returns ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, userID int64, params UpdateUserParams) (*User, error)
	// Delete removes the user and everything they own.
	Delete(ctx context.Context, userID int64) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}
