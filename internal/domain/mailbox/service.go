package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"chreosis/internal/domain/extraction"
	"chreosis/internal/domain/ledger"
	"chreosis/internal/domain/notification"
	"chreosis/internal/domain/transaction"
	"chreosis/internal/shared/messages"
)

var (
	mailboxMeter     = otel.Meter("chreosis/mailbox")
	messagesTotal, _ = mailboxMeter.Int64Counter(
		"mailbox.messages",
		metric.WithDescription("Inbox messages processed by outcome"),
	)
)

// ErrNoAccount is returned when a charge arrives for a user without accounts.
var ErrNoAccount = fmt.Errorf("%w: user has no account to book into", ledger.ErrNotFound)

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type Service struct {
	repo       Repository
	gateway    Gateway
	cipher     Cipher
	states     StateSigner
	booker     Booker
	accounts   Accounts
	categories Categories
	extractor  extraction.Extractor
	notifier   Notifier
	texts      messages.Messages

	deduper Deduper
	locker  Locker
	marker  string
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithDeduper drops Pub/Sub deliveries whose message id was already seen.
func WithDeduper(d Deduper) Option {
	return func(s *Service) { s.deduper = d }
}

// WithLocker serializes mailbox processing across instances.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithSubjectMarker overrides the subject a bank email must contain.
func WithSubjectMarker(marker string) Option {
	return func(s *Service) {
		if marker != "" {
			s.marker = marker
		}
	}
}

func NewService(
	repo Repository,
	gateway Gateway,
	cipher Cipher,
	states StateSigner,
	booker Booker,
	accounts Accounts,
	categories Categories,
	extractor extraction.Extractor,
	notifier Notifier,
	texts *messages.Messages,
	opts ...Option,
) *Service {
	s := &Service{
		repo:       repo,
		gateway:    gateway,
		cipher:     cipher,
		states:     states,
		booker:     booker,
		accounts:   accounts,
		categories: categories,
		extractor:  extractor,
		notifier:   notifier,
		texts:      messages.Defaults(),
		locker:     noopLocker{},
		marker:     DefaultSubjectMarker,
		now:        time.Now,
	}
	if texts != nil {
		s.texts = *texts
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConnectURL returns the Google consent page for userID.
func (s *Service) ConnectURL(userID int64) (string, error) {
	state, err := s.states.SignState(userID)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return s.gateway.AuthURL(state), nil
}

// CompleteOAuth finishes the consent flow: it stores the credentials and
// starts watching the user's inbox.
func (s *Service) CompleteOAuth(ctx context.Context, state, code string) (*Mailbox, error) {
	userID, err := s.states.VerifyState(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", ledger.ErrInvalid)
	}

	creds, err := s.gateway.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	session, err := s.gateway.Open(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to open gmail session: %w", err)
	}

	email, err := session.Email(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gmail profile: %w", err)
	}
	watch, err := session.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to watch inbox: %w", err)
	}

	sealed, err := s.seal(session)
	if err != nil {
		return nil, err
	}

	mb, err := s.repo.Upsert(ctx, UpsertParams{
		UserID:          userID,
		Email:           strings.ToLower(email),
		EncryptedToken:  sealed,
		HistoryID:       watch.HistoryID,
		WatchExpiration: watch.Expiration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save mailbox: %w", err)
	}

	log.Info().Int64("user_id", userID).Str("email", mb.Email).Msg("Gmail mailbox connected")

	text := s.texts.GmailConnected.Render(map[string]string{"email": mb.Email})
	if err := s.notifier.SendToUser(ctx, userID, text.Title, text.Body, notification.CategoryGeneral, nil); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to notify mailbox connection")
	}

	return mb, nil
}

// ResolvePush maps a Pub/Sub notification to the mailbox it concerns.
// Redeliveries return ErrDuplicatePush.
func (s *Service) ResolvePush(ctx context.Context, push Push) (*Mailbox, error) {
	if push.Email == "" {
		return nil, fmt.Errorf("%w: notification has no email address", ledger.ErrInvalid)
	}
	if s.deduper != nil && push.MessageID != "" {
		seen, err := s.deduper.Seen(ctx, push.MessageID)
		if err != nil {
			log.Warn().Err(err).Str("message_id", push.MessageID).Msg("Push dedupe unavailable")
		} else if seen {
			return nil, ErrDuplicatePush
		}
	}
	mb, err := s.repo.GetByEmail(ctx, strings.ToLower(push.Email))
	if err != nil && !errors.Is(err, ErrMailboxNotFound) {
		s.ReleasePush(ctx, push)
		return nil, err
	}
	return mb, err
}

// ReleasePush forgets a push that was resolved but not handed off, so the
// redelivery Pub/Sub sends after a failed ack is processed.
func (s *Service) ReleasePush(ctx context.Context, push Push) {
	if s.deduper == nil || push.MessageID == "" {
		return
	}
	if err := s.deduper.Forget(ctx, push.MessageID); err != nil {
		log.Warn().Err(err).Str("message_id", push.MessageID).Msg("Could not release push id")
	}
}

// Process reads the newest inbox message of a mailbox and books it when it
// is an unread bank charge notification that has not been handled yet.
func (s *Service) Process(ctx context.Context, mailboxID int64) (Outcome, error) {
	mb, err := s.repo.GetByID(ctx, mailboxID)
	if err != nil {
		return "", err
	}

	unlock, err := s.locker.Lock(ctx, "mailbox:"+strconv.FormatInt(mb.ID, 10))
	if err != nil {
		return "", fmt.Errorf("failed to lock mailbox: %w", err)
	}
	defer unlock()

	session, original, err := s.open(ctx, mb)
	if err != nil {
		return "", err
	}
	defer s.persistCredentials(ctx, mb, session, original)

	msg, err := session.LatestInboxMessage(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read inbox: %w", err)
	}
	if !s.relevant(mb, msg) {
		record(ctx, OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	ext := s.extractor.Extract(ctx, msg.Body)
	outcome, reason := OutcomeRejected, ext.Error

	if ext.Approved() {
		txn, err := s.book(ctx, mb, ext)
		switch {
		case err == nil:
			outcome = OutcomeBooked
			log.Info().
				Int64("user_id", mb.UserID).
				Int64("transaction_id", txn.ID).
				Str("amount", txn.Amount.StringFixed(ledger.MinorUnits)).
				Msg("Charge booked from email")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			reason = "fondos insuficientes"
		case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrInvalid):
			reason = err.Error()
		default:
			return "", fmt.Errorf("failed to book charge: %w", err)
		}
	}

	if err := s.repo.MarkProcessed(ctx, mb.ID, msg.ID); err != nil {
		return "", fmt.Errorf("failed to mark message processed: %w", err)
	}

	s.notifyOutcome(ctx, mb.UserID, outcome, ext, reason)
	record(ctx, outcome)
	return outcome, nil
}

func (s *Service) relevant(mb *Mailbox, msg *Message) bool {
	if msg == nil || !msg.Unread || msg.Body == "" {
		return false
	}
	if !strings.Contains(msg.Subject, s.marker) {
		return false
	}
	return mb.LastMessageID == nil || *mb.LastMessageID != msg.ID
}

func (s *Service) book(ctx context.Context, mb *Mailbox, ext extraction.Extraction) (*transaction.Transaction, error) {
	accountID, err := s.targetAccount(ctx, mb)
	if err != nil {
		return nil, err
	}

	var categoryID int64
	if mb.DefaultCategoryID != nil {
		categoryID = *mb.DefaultCategoryID
	} else {
		cat, err := s.categories.EnsureCategory(ctx, mb.UserID, ext.Category)
		if err != nil {
			return nil, err
		}
		categoryID = cat.ID
	}

	date := ext.Date
	note := "Gmail: " + ext.Place
	return s.booker.Create(ctx, transaction.CreateParams{
		UserID:     mb.UserID,
		AccountID:  accountID,
		CategoryID: categoryID,
		Date:       &date,
		Amount:     ext.Amount,
		Type:       ledger.Expense,
		Note:       &note,
		Place:      optional(ext.Place),
		Currency:   optional(ext.Currency),
	})
}

func (s *Service) targetAccount(ctx context.Context, mb *Mailbox) (int64, error) {
	if mb.DefaultAccountID != nil {
		return *mb.DefaultAccountID, nil
	}
	accounts, err := s.accounts.ListAccountsByUserID(ctx, mb.UserID)
	if err != nil {
		return 0, err
	}
	if len(accounts) == 0 {
		return 0, ErrNoAccount
	}
	return accounts[0].ID, nil
}

func (s *Service) notifyOutcome(ctx context.Context, userID int64, outcome Outcome, ext extraction.Extraction, reason string) {
	var text messages.MessageText
	if outcome == OutcomeBooked {
		text = s.texts.TransactionApproved.Render(map[string]string{
			"amount":   ext.Amount.StringFixed(ledger.MinorUnits),
			"currency": ext.Currency,
			"place":    ext.Place,
		})
	} else {
		text = s.texts.TransactionRejected.Render(map[string]string{"reason": reason})
	}

	data := map[string]string{"outcome": string(outcome)}
	if err := s.notifier.SendToUser(ctx, userID, text.Title, text.Body, notification.CategoryTransactions, data); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to notify email outcome")
	}
}

// Stop stops the inbox watch and forgets the stored credentials.
func (s *Service) Stop(ctx context.Context, userID int64) error {
	mb, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	session, _, err := s.open(ctx, mb)
	if err != nil {
		log.Warn().Err(err).Int64("mailbox_id", mb.ID).Msg("Could not open session to stop watch")
	} else if err := session.Stop(ctx); err != nil {
		log.Warn().Err(err).Int64("mailbox_id", mb.ID).Msg("Failed to stop Gmail watch")
	}

	return s.repo.Delete(ctx, mb.ID)
}

// Status returns the user's connected mailbox.
func (s *Service) Status(ctx context.Context, userID int64) (*Mailbox, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// UpdateDefaults sets where booked charges go. Both targets must belong to
// the user.
func (s *Service) UpdateDefaults(ctx context.Context, userID int64, defaults Defaults) (*Mailbox, error) {
	mb, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if defaults.AccountID != nil {
		if _, err := s.accounts.GetAccount(ctx, *defaults.AccountID, userID); err != nil {
			return nil, err
		}
	}
	if defaults.CategoryID != nil {
		if _, err := s.categories.GetCategory(ctx, *defaults.CategoryID, userID); err != nil {
			return nil, err
		}
	}
	return s.repo.UpdateDefaults(ctx, mb.ID, defaults)
}

// RenewWatches renews every watch expiring within the given window. Gmail
// watches lapse after seven days.
func (s *Service) RenewWatches(ctx context.Context, within time.Duration) (int, error) {
	due, err := s.repo.ListWatchesExpiringBefore(ctx, s.now().Add(within))
	if err != nil {
		return 0, fmt.Errorf("failed to list expiring watches: %w", err)
	}

	renewed := 0
	var errs []error
	for _, mb := range due {
		if err := s.renew(ctx, mb); err != nil {
			log.Error().Err(err).Int64("mailbox_id", mb.ID).Msg("Failed to renew Gmail watch")
			errs = append(errs, fmt.Errorf("mailbox %d: %w", mb.ID, err))
			continue
		}
		renewed++
	}
	return renewed, errors.Join(errs...)
}

func (s *Service) renew(ctx context.Context, mb *Mailbox) error {
	session, original, err := s.open(ctx, mb)
	if err != nil {
		return err
	}
	defer s.persistCredentials(ctx, mb, session, original)

	watch, err := session.Watch(ctx)
	if err != nil {
		return err
	}
	return s.repo.UpdateWatch(ctx, mb.ID, watch)
}

func (s *Service) open(ctx context.Context, mb *Mailbox) (Session, string, error) {
	plain, err := s.cipher.Decrypt(mb.EncryptedToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	session, err := s.gateway.Open(ctx, []byte(plain))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open gmail session: %w", err)
	}
	return session, plain, nil
}

func (s *Service) seal(session Session) (string, error) {
	creds, err := session.Credentials()
	if err != nil {
		return "", fmt.Errorf("failed to read credentials: %w", err)
	}
	sealed, err := s.cipher.Encrypt(string(creds))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	return sealed, nil
}

// persistCredentials stores refreshed tokens so the next session does not
// have to refresh again.
func (s *Service) persistCredentials(ctx context.Context, mb *Mailbox, session Session, original string) {
	creds, err := session.Credentials()
	if err != nil || string(creds) == original {
		return
	}
	sealed, err := s.cipher.Encrypt(string(creds))
	if err != nil {
		log.Warn().Err(err).Int64("mailbox_id", mb.ID).Msg("Failed to encrypt refreshed credentials")
		return
	}
	if err := s.repo.UpdateToken(ctx, mb.ID, sealed); err != nil {
		log.Warn().Err(err).Int64("mailbox_id", mb.ID).Msg("Failed to save refreshed credentials")
	}
}

func record(ctx context.Context, outcome Outcome) {
	messagesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
