package user

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"chreosis/internal/domain/ledger"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 20
)

// Domain errors
var (
	ErrUserNotFound       = fmt.Errorf("user %w", ledger.ErrNotFound)
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", ledger.ErrConflict)
	ErrInvalidInput       = fmt.Errorf("user %w", ledger.ErrInvalid)
	ErrWeakPassword       = fmt.Errorf("%w: password must be %d-%d characters with at least one digit and one uppercase letter", ErrInvalidInput, MinPasswordLength, MaxPasswordLength)
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PhoneNumber  *string   `json:"phoneNumber,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RegisterParams is the input of a password registration.
type RegisterParams struct {
	Name        string
	Email       string
	PhoneNumber *string
	Password    string
}

func (p *RegisterParams) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email, err := NormalizeEmail(p.Email)
	if err != nil {
		return err
	}
	p.Email = email
	return ValidatePassword(p.Password)
}

// CreateUserParams is what the repository persists.
type CreateUserParams struct {
	Name         string
	Email        string
	PhoneNumber  *string
	PasswordHash string
}

type UpdateUserParams struct {
	Name        *string
	Email       *string
	PhoneNumber *string
}

func (p *UpdateUserParams) Validate() error {
	if p.Name == nil && p.Email == nil && p.PhoneNumber == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		p.Name = &name
	}
	if p.Email != nil {
		email, err := NormalizeEmail(*p.Email)
		if err != nil {
			return err
		}
		p.Email = &email
	}
	return nil
}

// NormalizeEmail validates a bare address and lower-cases it.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email %q", ErrInvalidInput, email)
	}
	return strings.ToLower(addr.Address), nil
}

// ValidatePassword enforces length and character class rules.
func ValidatePassword(password string) error {
	n := len([]rune(password))
	if n < MinPasswordLength || n > MaxPasswordLength {
		return ErrWeakPassword
	}
	var digit, upper bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	if !digit || !upper {
		return ErrWeakPassword
	}
	return nil
}
