// Package gmail connects user inboxes through the Gmail API.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"chreosis/internal/domain/mailbox"
)

const me = "me"

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// TopicName is the Pub/Sub topic Gmail publishes inbox changes to,
	// as projects/<project>/topics/<topic>.
	TopicName string
}

// Gateway implements mailbox.Gateway.
type Gateway struct {
	oauth *oauth2.Config
	topic string
}

func NewGateway(cfg Config) *Gateway {
	return &Gateway{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmailapi.GmailReadonlyScope},
		},
		topic: cfg.TopicName,
	}
}

// AuthURL asks for offline access and forces the consent screen so Google
// always returns a refresh token.
func (g *Gateway) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (g *Gateway) Exchange(ctx context.Context, code string) ([]byte, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tok)
}

func (g *Gateway) Open(ctx context.Context, credentials []byte) (mailbox.Session, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(credentials, &tok); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	src := &trackingSource{
		src:  g.oauth.TokenSource(ctx, &tok),
		last: &tok,
	}
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &session{svc: svc, tokens: src, topic: g.topic}, nil
}

// trackingSource remembers the last token handed out so refreshed
// credentials can be stored.
type trackingSource struct {
	src  oauth2.TokenSource
	mu   sync.Mutex
	last *oauth2.Token
}

func (t *trackingSource) Token() (*oauth2.Token, error) {
	tok, err := t.src.Token()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.last = tok
	t.mu.Unlock()
	return tok, nil
}

func (t *trackingSource) current() *oauth2.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

type session struct {
	svc    *gmailapi.Service
	tokens *trackingSource
	topic  string
}

func (s *session) Email(ctx context.Context) (string, error) {
	profile, err := s.svc.Users.GetProfile(me).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return profile.EmailAddress, nil
}

func (s *session) Watch(ctx context.Context) (mailbox.Watch, error) {
	resp, err := s.svc.Users.Watch(me, &gmailapi.WatchRequest{
		TopicName:           s.topic,
		LabelIds:            []string{"INBOX"},
		LabelFilterBehavior: "include",
	}).Context(ctx).Do()
	if err != nil {
		return mailbox.Watch{}, err
	}
	return mailbox.Watch{
		HistoryID:  resp.HistoryId,
		Expiration: time.UnixMilli(resp.Expiration),
	}, nil
}

func (s *session) Stop(ctx context.Context) error {
	return s.svc.Users.Stop(me).Context(ctx).Do()
}

func (s *session) LatestInboxMessage(ctx context.Context) (*mailbox.Message, error) {
	list, err := s.svc.Users.Messages.List(me).LabelIds("INBOX").MaxResults(1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return nil, nil
	}

	msg, err := s.svc.Users.Messages.Get(me, list.Messages[0].Id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return toMessage(msg), nil
}

func (s *session) Credentials() ([]byte, error) {
	return json.Marshal(s.tokens.current())
}
