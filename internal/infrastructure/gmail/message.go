package gmail

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"chreosis/internal/domain/mailbox"
)

func toMessage(m *gmailapi.Message) *mailbox.Message {
	msg := &mailbox.Message{
		ID:     m.Id,
		Unread: slices.Contains(m.LabelIds, "UNREAD"),
	}
	if m.Payload == nil {
		return msg
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, "Subject") {
			msg.Subject = h.Value
			break
		}
	}
	msg.Body = plainText(m.Payload)
	return msg
}

// plainText returns the first text/plain part, searching nested multiparts.
func plainText(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		if text, err := decodeBody(part.Body.Data); err == nil {
			return text
		}
	}
	for _, p := range part.Parts {
		if text := plainText(p); text != "" {
			return text
		}
	}
	return ""
}

// Gmail encodes bodies as URL-safe base64, with or without padding.
func decodeBody(data string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// pushEnvelope is the body Pub/Sub posts to a push subscription.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type pushData struct {
	EmailAddress string          `json:"emailAddress"`
	HistoryID    json.RawMessage `json:"historyId"`
}

// DecodePush parses a Gmail Pub/Sub push request body.
func DecodePush(body []byte) (mailbox.Push, error) {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return mailbox.Push{}, fmt.Errorf("invalid push envelope: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return mailbox.Push{}, fmt.Errorf("invalid push data: %w", err)
	}

	var data pushData
	if err := json.Unmarshal(raw, &data); err != nil {
		return mailbox.Push{}, fmt.Errorf("invalid push payload: %w", err)
	}
	if data.EmailAddress == "" {
		return mailbox.Push{}, fmt.Errorf("push payload has no emailAddress")
	}

	push := mailbox.Push{MessageID: env.Message.MessageID, Email: data.EmailAddress}
	if len(data.HistoryID) > 0 {
		var id uint64
		if err := json.Unmarshal([]byte(strings.Trim(string(data.HistoryID), `"`)), &id); err != nil {
			return mailbox.Push{}, fmt.Errorf("invalid historyId: %w", err)
		}
		push.HistoryID = id
	}
	return push, nil
}
