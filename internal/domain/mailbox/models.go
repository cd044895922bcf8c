package mailbox

import (
	"errors"
	"fmt"
	"time"

	"chreosis/internal/domain/ledger"
)

// DefaultSubjectMarker identifies bank charge notifications.
const DefaultSubjectMarker = "Notificación de Consumo"

// Domain errors
var (
	ErrMailboxNotFound = fmt.Errorf("mailbox %w", ledger.ErrNotFound)
	ErrDuplicatePush   = errors.New("push notification already handled")
	ErrInvalidState    = fmt.Errorf("%w: invalid oauth state", ledger.ErrInvalid)
	ErrMailboxTaken    = fmt.Errorf("mailbox %w", ledger.ErrConflict)
)

// Mailbox is a user's connected Gmail inbox.
type Mailbox struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"userId"`
	Email             string     `json:"email"`
	EncryptedToken    string     `json:"-"`
	HistoryID         uint64     `json:"historyId"`
	WatchExpiration   *time.Time `json:"watchExpiration,omitempty"`
	LastMessageID     *string    `json:"-"`
	DefaultAccountID  *int64     `json:"defaultAccountId,omitempty"`
	DefaultCategoryID *int64     `json:"defaultCategoryId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// WatchActive reports whether Gmail is still pushing changes at t.
func (m *Mailbox) WatchActive(t time.Time) bool {
	return m.WatchExpiration != nil && m.WatchExpiration.After(t)
}

// UpsertParams stores a freshly connected mailbox. Connecting again replaces
// the token and watch of the user's existing mailbox.
type UpsertParams struct {
	UserID          int64
	Email           string
	EncryptedToken  string
	HistoryID       uint64
	WatchExpiration time.Time
}

// Defaults selects where booked charges go. Nil fields fall back to the
// user's first account and a category named after the extracted one.
type Defaults struct {
	AccountID  *int64
	CategoryID *int64
}

// Push is a decoded Gmail Pub/Sub notification.
type Push struct {
	MessageID string
	Email     string
	HistoryID uint64
}

// Watch is the result of starting or renewing a Gmail watch.
type Watch struct {
	HistoryID  uint64
	Expiration time.Time
}

// Message is the newest inbox message of a mailbox.
type Message struct {
	ID      string
	Subject string
	Unread  bool
	// Body is the text/plain part, empty when there is none.
	Body string
}

// Outcome is the result of processing a mailbox.
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeBooked   Outcome = "booked"
	OutcomeRejected Outcome = "rejected"
)
