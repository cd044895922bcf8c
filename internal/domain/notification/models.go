package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chreosis/internal/domain/ledger"
)

// Notification categories
const (
	CategoryAccounts     = "accounts"
	CategoryGeneral      = "general"
	CategoryTransactions = "transactions"
)

var validCategories = map[string]struct{}{
	CategoryAccounts:     {},
	CategoryGeneral:      {},
	CategoryTransactions: {},
}

var validDeviceTypes = map[string]struct{}{
	"ios":     {},
	"android": {},
	"web":     {},
}

const maxDeviceNameLength = 100

// Domain errors
var (
	ErrNotificationNotFound = fmt.Errorf("notification %w", ledger.ErrNotFound)
	ErrPreferencesNotFound  = fmt.Errorf("notification preferences %w", ledger.ErrNotFound)
	ErrInvalidCategory      = fmt.Errorf("%w: invalid notification category", ledger.ErrInvalid)
	ErrInvalidDeviceType    = fmt.Errorf("%w: device type must be 'ios', 'android' or 'web'", ledger.ErrInvalid)
	ErrInvalidToken         = fmt.Errorf("%w: device token is required", ledger.ErrInvalid)
)

// DeviceToken is a registered FCM device.
type DeviceToken struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Token      string    `json:"token"`
	Name       string    `json:"name"`
	DeviceType string    `json:"deviceType,omitempty"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// NotificationPreference stores per-category notification toggles for a user
type NotificationPreference struct {
	UserID              int64     `json:"-"`
	GeneralEnabled      bool      `json:"general_enabled"`
	AccountsEnabled     bool      `json:"accounts_enabled"`
	TransactionsEnabled bool      `json:"transactions_enabled"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// DefaultPreferences has every category enabled.
func DefaultPreferences(userID int64) *NotificationPreference {
	return &NotificationPreference{
		UserID:              userID,
		GeneralEnabled:      true,
		AccountsEnabled:     true,
		TransactionsEnabled: true,
	}
}

// Notification represents a stored notification record
type Notification struct {
	ID        string            `json:"id"`
	UserID    int64             `json:"-"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Category  string            `json:"category"`
	Data      map[string]string `json:"data"`
	OpenedAt  *time.Time        `json:"opened_at"`
	CreatedAt time.Time         `json:"created_at"`
}

// CreateDeviceTokenParams contains parameters for registering a device.
// DeviceType is optional.
type CreateDeviceTokenParams struct {
	UserID     int64
	Token      string
	Name       string
	DeviceType string
}

func (p *CreateDeviceTokenParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	p.Token = strings.TrimSpace(p.Token)
	if p.Token == "" {
		return ErrInvalidToken
	}
	p.Name = strings.TrimSpace(p.Name)
	if len(p.Name) > maxDeviceNameLength {
		p.Name = p.Name[:maxDeviceNameLength]
	}
	p.DeviceType = strings.ToLower(strings.TrimSpace(p.DeviceType))
	if p.DeviceType != "" && !IsValidDeviceType(p.DeviceType) {
		return ErrInvalidDeviceType
	}
	return nil
}

// UpdatePreferenceParams contains fields for updating notification preferences
type UpdatePreferenceParams struct {
	GeneralEnabled      *bool
	AccountsEnabled     *bool
	TransactionsEnabled *bool
}

// CreateNotificationParams contains parameters for storing a notification
type CreateNotificationParams struct {
	UserID   int64
	Title    string
	Message  string
	Category string
	Data     map[string]string
}

func (p CreateNotificationParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Title == "" {
		return errors.New("notification title is required")
	}
	if p.Message == "" {
		return errors.New("notification message is required")
	}
	if !IsValidCategory(p.Category) {
		return ErrInvalidCategory
	}
	return nil
}

func IsValidCategory(c string) bool {
	_, ok := validCategories[c]
	return ok
}

func IsValidDeviceType(dt string) bool {
	_, ok := validDeviceTypes[dt]
	return ok
}

// IsCategoryEnabled checks if a specific category is enabled in preferences
func (p *NotificationPreference) IsCategoryEnabled(category string) bool {
	switch category {
	case CategoryAccounts:
		return p.AccountsEnabled
	case CategoryGeneral:
		return p.GeneralEnabled
	case CategoryTransactions:
		return p.TransactionsEnabled
	default:
		return false
	}
}
