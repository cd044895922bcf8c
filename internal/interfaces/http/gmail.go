package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"chreosis/internal/domain/mailbox"
	"chreosis/internal/shared/logger"
)

// MailboxService is the part of mailbox.Service the Gmail endpoints use.
type MailboxService interface {
	ConnectURL(userID int64) (string, error)
	CompleteOAuth(ctx context.Context, state, code string) (*mailbox.Mailbox, error)
	ResolvePush(ctx context.Context, push mailbox.Push) (*mailbox.Mailbox, error)
	ReleasePush(ctx context.Context, push mailbox.Push)
	Stop(ctx context.Context, userID int64) error
	Status(ctx context.Context, userID int64) (*mailbox.Mailbox, error)
	UpdateDefaults(ctx context.Context, userID int64, defaults mailbox.Defaults) (*mailbox.Mailbox, error)
}

// MailboxQueue hands a mailbox to the background workers.
type MailboxQueue interface {
	Enqueue(mailboxID, userID int64) error
}

// PushVerifier authenticates a Pub/Sub push by its Authorization header.
type PushVerifier interface {
	Verify(authorization string) error
}

// PushDecoder parses a Pub/Sub push body.
type PushDecoder func(body []byte) (mailbox.Push, error)

type GmailHandler struct {
	mailboxes       MailboxService
	queue           MailboxQueue
	decode          PushDecoder
	verifier        PushVerifier
	successRedirect string
}

// NewGmailHandler builds the Gmail endpoints. A nil verifier accepts
// unauthenticated pushes.
func NewGmailHandler(mailboxes MailboxService, queue MailboxQueue, decode PushDecoder, verifier PushVerifier, successRedirect string) *GmailHandler {
	return &GmailHandler{
		mailboxes:       mailboxes,
		queue:           queue,
		decode:          decode,
		verifier:        verifier,
		successRedirect: successRedirect,
	}
}

type MailboxStatusResponse struct {
	Connected         bool    `json:"connected"`
	Email             string  `json:"email,omitempty"`
	WatchExpiration   *string `json:"watchExpiration,omitempty"`
	DefaultAccountID  *int64  `json:"defaultAccountId,omitempty"`
	DefaultCategoryID *int64  `json:"defaultCategoryId,omitempty"`
}

type MailboxSettingsRequest struct {
	DefaultAccountID  *int64 `json:"defaultAccountId"`
	DefaultCategoryID *int64 `json:"defaultCategoryId"`
}

// HandleLogin returns the Google consent URL for the current user.
func (h *GmailHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	url, err := h.mailboxes.ConnectURL(userID)
	if err != nil {
		writeError(w, r, err, "Failed to start Gmail authorization")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authorization_url": url})
}

// HandleCallback completes the consent flow. The user is identified by the
// signed state, not by a session.
func (h *GmailHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Gmail authorization denied: "+errParam, http.StatusBadRequest)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		http.Error(w, "code and state are required", http.StatusBadRequest)
		return
	}

	mb, err := h.mailboxes.CompleteOAuth(r.Context(), state, code)
	if err != nil {
		writeError(w, r, err, "Failed to connect Gmail")
		return
	}

	if h.successRedirect != "" {
		http.Redirect(w, r, h.successRedirect, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Gmail conectado exitosamente",
		"email":   mb.Email,
	})
}

// HandleNotifications is the Pub/Sub push endpoint. Anything other than a
// 2xx makes Pub/Sub redeliver, so pushes that will never succeed are acked.
func (h *GmailHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	l := logger.FromContext(r.Context())

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header.Get("Authorization")); err != nil {
			l.Warn().Err(err).Msg("Rejected Gmail push")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	push, err := h.decode(body)
	if err != nil {
		l.Warn().Err(err).Msg("Undecodable Gmail push")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mb, err := h.mailboxes.ResolvePush(r.Context(), push)
	switch {
	case errors.Is(err, mailbox.ErrDuplicatePush):
		writeJSON(w, http.StatusOK, map[string]string{"status": "IGNORED", "reason": "duplicate"})
		return
	case errors.Is(err, mailbox.ErrMailboxNotFound):
		writeJSON(w, http.StatusOK, map[string]string{"status": "IGNORED", "reason": "unknown mailbox"})
		return
	case err != nil:
		writeError(w, r, err, "Failed to handle Gmail push")
		return
	}

	if err := h.queue.Enqueue(mb.ID, mb.UserID); err != nil {
		l.Warn().Err(err).Int64("mailbox_id", mb.ID).Msg("Could not enqueue mailbox")
		h.mailboxes.ReleasePush(r.Context(), push)
		http.Error(w, "Busy", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// HandleStop disconnects the user's mailbox.
func (h *GmailHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.mailboxes.Stop(r.Context(), userID); err != nil {
		writeError(w, r, err, "Failed to disconnect Gmail")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus reports whether the user has a connected mailbox.
func (h *GmailHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	mb, err := h.mailboxes.Status(r.Context(), userID)
	if errors.Is(err, mailbox.ErrMailboxNotFound) {
		writeJSON(w, http.StatusOK, MailboxStatusResponse{Connected: false})
		return
	}
	if err != nil {
		writeError(w, r, err, "Failed to get Gmail status")
		return
	}
	writeJSON(w, http.StatusOK, toMailboxStatus(mb))
}

// HandleSettings sets the default account and category for booked charges.
func (h *GmailHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req MailboxSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	mb, err := h.mailboxes.UpdateDefaults(r.Context(), userID, mailbox.Defaults{
		AccountID:  req.DefaultAccountID,
		CategoryID: req.DefaultCategoryID,
	})
	if err != nil {
		writeError(w, r, err, "Failed to update Gmail settings")
		return
	}
	writeJSON(w, http.StatusOK, toMailboxStatus(mb))
}

func toMailboxStatus(mb *mailbox.Mailbox) MailboxStatusResponse {
	resp := MailboxStatusResponse{
		Connected:         true,
		Email:             mb.Email,
		DefaultAccountID:  mb.DefaultAccountID,
		DefaultCategoryID: mb.DefaultCategoryID,
	}
	if mb.WatchExpiration != nil {
		formatted := mb.WatchExpiration.Format("2006-01-02T15:04:05Z07:00")
		resp.WatchExpiration = &formatted
	}
	return resp
}
