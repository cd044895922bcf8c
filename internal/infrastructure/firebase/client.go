// Package firebase delivers push notifications through Firebase Cloud Messaging.
package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const fcmBatchLimit = 500

// TokenDeactivator marks a token FCM rejected as inactive.
type TokenDeactivator func(ctx context.Context, token string) error

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client implements notification.Messenger using Firebase Cloud Messaging
type Client struct {
	sender      multicastSender
	deactivator TokenDeactivator
}

// NewClient initializes a Firebase app from a service account file.
// deactivator may be nil.
func NewClient(ctx context.Context, credentialsFile string, deactivator TokenDeactivator) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return &Client{sender: msgClient, deactivator: deactivator}, nil
}

// SendMulticast shows a notification on every device.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	return c.broadcast(ctx, "notification", tokens, func(batch []string) *messaging.MulticastMessage {
		return &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
		}
	})
}

// SendDataOnly delivers data without an OS notification. Clients use it to
// refresh balances in the foreground.
func (c *Client) SendDataOnly(ctx context.Context, tokens []string, data map[string]string) error {
	return c.broadcast(ctx, "data", tokens, func(batch []string) *messaging.MulticastMessage {
		return &messaging.MulticastMessage{
			Tokens:  batch,
			Data:    data,
			Android: &messaging.AndroidConfig{Priority: "high"},
			APNS: &messaging.APNSConfig{
				Headers: map[string]string{"apns-push-type": "background", "apns-priority": "5"},
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{ContentAvailable: true}},
			},
		}
	})
}

func (c *Client) broadcast(ctx context.Context, kind string, tokens []string, build func(batch []string) *messaging.MulticastMessage) error {
	if len(tokens) == 0 {
		return nil
	}

	var success, failure int
	for _, batch := range chunkTokens(tokens, fcmBatchLimit) {
		resp, err := c.sender.SendEachForMulticast(ctx, build(batch))
		if err != nil {
			return fmt.Errorf("failed to send FCM %s multicast: %w", kind, err)
		}

		success += resp.SuccessCount
		failure += resp.FailureCount
		if resp.FailureCount > 0 {
			c.handleFailures(ctx, batch, resp)
		}
	}

	log.Debug().Str("kind", kind).Int("success", success).Int("failure", failure).Msg("FCM multicast sent")
	return nil
}

func (c *Client) handleFailures(ctx context.Context, tokens []string, resp *messaging.BatchResponse) {
	for i, r := range resp.Responses {
		if r.Error == nil {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			log.Info().Err(r.Error).Int("index", i).Msg("Deactivating rejected FCM token")
			c.deactivate(ctx, tokens[i])
			continue
		}
		log.Warn().Err(r.Error).Int("index", i).Msg("FCM send failed")
	}
}

func (c *Client) deactivate(ctx context.Context, token string) {
	if c.deactivator == nil {
		return
	}
	if err := c.deactivator(ctx, token); err != nil {
		log.Warn().Err(err).Msg("Failed to deactivate FCM token")
	}
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		end := min(i+size, len(tokens))
		chunks = append(chunks, tokens[i:end])
	}
	return chunks
}
