package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/tbourn/go-coach-bot/internal/domain"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Line-Signature"

// ValidateSignature reports whether signature matches body under secret.
func ValidateSignature(secret string, body []byte, signature string) bool {
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature header value for body. Used by the CLI and tests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// WebhookPayload is the body of one webhook delivery.
type WebhookPayload struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent is the subset of a platform event the pipeline reads.
type WebhookEvent struct {
	Type            string `json:"type"`
	WebhookEventID  string `json:"webhookEventId"`
	ReplyToken      string `json:"replyToken"`
	Timestamp       int64  `json:"timestamp"`
	DeliveryContext struct {
		IsRedelivery bool `json:"isRedelivery"`
	} `json:"deliveryContext"`
	Source struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message *struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message,omitempty"`
}

// ParsePayload decodes a webhook body.
func ParsePayload(body []byte) (WebhookPayload, error) {
	var p WebhookPayload
	err := json.Unmarshal(body, &p)
	return p, err
}

// MessageEvents converts the payload's message events into pipeline events.
// Non-message events (follow, unfollow, postback, ...) are dropped.
func (p WebhookPayload) MessageEvents() []domain.InboundEvent {
	out := make([]domain.InboundEvent, 0, len(p.Events))
	for _, e := range p.Events {
		if e.Type != "message" || e.Message == nil {
			continue
		}
		ev := domain.InboundEvent{
			EventID:    e.WebhookEventID,
			Principal:  e.Source.UserID,
			ReplyToken: e.ReplyToken,
			MessageID:  e.Message.ID,
			Redelivery: e.DeliveryContext.IsRedelivery,
		}
		if e.Timestamp > 0 {
			ev.Timestamp = time.UnixMilli(e.Timestamp)
		}
		switch e.Message.Type {
		case "text":
			ev.Kind = domain.KindText
			ev.Text = e.Message.Text
		case "image":
			ev.Kind = domain.KindImage
		default:
			ev.Kind = domain.KindOther
		}
		out = append(out, ev)
	}
	return out
}
