package mailbox

import (
	"context"
	"time"

	"chreosis/internal/domain/account"
	"chreosis/internal/domain/category"
	"chreosis/internal/domain/transaction"
)

// Repository persists mailboxes. Every lookup returns ErrMailboxNotFound when
// there is no match.
type Repository interface {
	Upsert(ctx context.Context, params UpsertParams) (*Mailbox, error)
	GetByID(ctx context.Context, id int64) (*Mailbox, error)
	GetByUserID(ctx context.Context, userID int64) (*Mailbox, error)
	GetByEmail(ctx context.Context, email string) (*Mailbox, error)
	ListWatchesExpiringBefore(ctx context.Context, t time.Time) ([]*Mailbox, error)
	UpdateWatch(ctx context.Context, id int64, watch Watch) error
	UpdateToken(ctx context.Context, id int64, encryptedToken string) error
	UpdateDefaults(ctx context.Context, id int64, defaults Defaults) (*Mailbox, error)
	MarkProcessed(ctx context.Context, id int64, messageID string) error
	Delete(ctx context.Context, id int64) error
}

// Gateway talks to Gmail on behalf of a user.
type Gateway interface {
	// AuthURL is the consent page a user visits to connect a mailbox.
	AuthURL(state string) string
	// Exchange trades an authorization code for serialized credentials.
	Exchange(ctx context.Context, code string) ([]byte, error)
	// Open starts a session from serialized credentials.
	Open(ctx context.Context, credentials []byte) (Session, error)
}

// Session is an authenticated Gmail client. Credentials may change while it
// is used because access tokens are refreshed on demand.
type Session interface {
	Email(ctx context.Context) (string, error)
	Watch(ctx context.Context) (Watch, error)
	Stop(ctx context.Context) error
	LatestInboxMessage(ctx context.Context) (*Message, error)
	Credentials() ([]byte, error)
}

// Cipher seals credentials at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// StateSigner binds an OAuth state parameter to a user.
type StateSigner interface {
	SignState(userID int64) (string, error)
	VerifyState(state string) (int64, error)
}

// Deduper remembers Pub/Sub message ids. Seen reports true when id was
// already recorded. Forget drops an id so a redelivery is handled again.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Locker serializes processing of a mailbox across instances.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Booker books an expense through the ledger.
type Booker interface {
	Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
}

type Accounts interface {
	GetAccount(ctx context.Context, accountID, userID int64) (*account.Account, error)
	ListAccountsByUserID(ctx context.Context, userID int64) ([]*account.Account, error)
}

type Categories interface {
	GetCategory(ctx context.Context, categoryID, userID int64) (*category.Category, error)
	EnsureCategory(ctx context.Context, userID int64, name string) (*category.Category, error)
}

// Notifier pushes a notification to a user's devices.
type Notifier interface {
	SendToUser(ctx context.Context, userID int64, title, body, category string, data map[string]string) error
}
