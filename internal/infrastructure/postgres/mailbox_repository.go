package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chreosis/internal/domain/mailbox"
)

type MailboxRepository struct {
	db *DB
}

func NewMailboxRepository(db *DB) *MailboxRepository {
	return &MailboxRepository{db: db}
}

const mailboxColumns = `id, user_id, email, encrypted_token, history_id, watch_expiration, last_message_id,
	default_account_id, default_category_id, created_at, updated_at`

func scanMailbox(row interface{ Scan(...any) error }) (*mailbox.Mailbox, error) {
	var mb mailbox.Mailbox
	var historyID int64
	var watchExpiration sql.NullTime
	var lastMessageID sql.NullString
	var defaultAccount, defaultCategory sql.NullInt64

	err := row.Scan(
		&mb.ID, &mb.UserID, &mb.Email, &mb.EncryptedToken, &historyID, &watchExpiration, &lastMessageID,
		&defaultAccount, &defaultCategory, &mb.CreatedAt, &mb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	mb.HistoryID = uint64(historyID)
	if watchExpiration.Valid {
		mb.WatchExpiration = &watchExpiration.Time
	}
	mb.LastMessageID = stringPtr(lastMessageID)
	if defaultAccount.Valid {
		mb.DefaultAccountID = &defaultAccount.Int64
	}
	if defaultCategory.Valid {
		mb.DefaultCategoryID = &defaultCategory.Int64
	}
	return &mb, nil
}

// Upsert stores a user's mailbox, replacing the credentials and watch of a
// previous connection. Defaults survive a reconnect.
func (r *MailboxRepository) Upsert(ctx context.Context, params mailbox.UpsertParams) (*mailbox.Mailbox, error) {
	query := `
		INSERT INTO mailboxes (user_id, email, encrypted_token, history_id, watch_expiration)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
			SET email = EXCLUDED.email,
			    encrypted_token = EXCLUDED.encrypted_token,
			    history_id = EXCLUDED.history_id,
			    watch_expiration = EXCLUDED.watch_expiration,
			    updated_at = NOW()
		RETURNING ` + mailboxColumns

	mb, err := scanMailbox(r.db.QueryRowContext(ctx, query,
		params.UserID, params.Email, params.EncryptedToken, int64(params.HistoryID), params.WatchExpiration,
	))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s is connected to another user: %w", params.Email, mailbox.ErrMailboxTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save mailbox: %w", err)
	}
	return mb, nil
}

func (r *MailboxRepository) get(ctx context.Context, where string, arg any) (*mailbox.Mailbox, error) {
	mb, err := scanMailbox(r.db.QueryRowContext(ctx, `SELECT `+mailboxColumns+` FROM mailboxes WHERE `+where+` = $1`, arg))
	if err == sql.ErrNoRows {
		return nil, mailbox.ErrMailboxNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mailbox: %w", err)
	}
	return mb, nil
}

func (r *MailboxRepository) GetByID(ctx context.Context, id int64) (*mailbox.Mailbox, error) {
	return r.get(ctx, "id", id)
}

func (r *MailboxRepository) GetByUserID(ctx context.Context, userID int64) (*mailbox.Mailbox, error) {
	return r.get(ctx, "user_id", userID)
}

func (r *MailboxRepository) GetByEmail(ctx context.Context, email string) (*mailbox.Mailbox, error) {
	return r.get(ctx, "email", email)
}

func (r *MailboxRepository) ListWatchesExpiringBefore(ctx context.Context, t time.Time) ([]*mailbox.Mailbox, error) {
	query := `
		SELECT ` + mailboxColumns + `
		FROM mailboxes
		WHERE watch_expiration IS NULL OR watch_expiration < $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, t)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring mailboxes: %w", err)
	}
	defer rows.Close()

	var boxes []*mailbox.Mailbox
	for rows.Next() {
		mb, err := scanMailbox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mailbox: %w", err)
		}
		boxes = append(boxes, mb)
	}
	return boxes, rows.Err()
}

func (r *MailboxRepository) exec(ctx context.Context, what, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update mailbox %s: %w", what, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return mailbox.ErrMailboxNotFound
	}
	return nil
}

func (r *MailboxRepository) UpdateWatch(ctx context.Context, id int64, watch mailbox.Watch) error {
	return r.exec(ctx, "watch",
		`UPDATE mailboxes SET history_id = $1, watch_expiration = $2, updated_at = NOW() WHERE id = $3`,
		int64(watch.HistoryID), watch.Expiration, id)
}

func (r *MailboxRepository) UpdateToken(ctx context.Context, id int64, encryptedToken string) error {
	return r.exec(ctx, "token",
		`UPDATE mailboxes SET encrypted_token = $1, updated_at = NOW() WHERE id = $2`,
		encryptedToken, id)
}

func (r *MailboxRepository) MarkProcessed(ctx context.Context, id int64, messageID string) error {
	return r.exec(ctx, "last message",
		`UPDATE mailboxes SET last_message_id = $1, updated_at = NOW() WHERE id = $2`,
		messageID, id)
}

func (r *MailboxRepository) UpdateDefaults(ctx context.Context, id int64, defaults mailbox.Defaults) (*mailbox.Mailbox, error) {
	query := `
		UPDATE mailboxes
		SET default_account_id = $1, default_category_id = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + mailboxColumns

	mb, err := scanMailbox(r.db.QueryRowContext(ctx, query, nullInt64(defaults.AccountID), nullInt64(defaults.CategoryID), id))
	if err == sql.ErrNoRows {
		return nil, mailbox.ErrMailboxNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update mailbox defaults: %w", err)
	}
	return mb, nil
}

func (r *MailboxRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM mailboxes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mailbox: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return mailbox.ErrMailboxNotFound
	}
	return nil
}
