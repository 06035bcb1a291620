// Package domain defines the core types that flow through the webhook
// pipeline: inbound platform events, intents, generation profiles,
// entitlement records and reply outcomes. Types here carry no behavior beyond
// small accessors so that every other package can depend on them freely.
package domain

import "time"

// EventKind is the coarse message type of an inbound platform event.
type EventKind string

const (
	KindText  EventKind = "text"
	KindImage EventKind = "image"
	KindOther EventKind = "other"
)

// InboundEvent is one message event from a webhook delivery. It is transient
// and never persisted.
//
// Fields:
//   - EventID: platform webhook event id, used for redelivery dedupe.
//   - Principal: opaque platform user id of the sender.
//   - ReplyToken: one-time token for answering this event.
//   - Kind: text, image or other.
//   - Text: message body for KindText.
//   - MessageID: content reference for KindImage, resolved via the platform.
type InboundEvent struct {
	EventID    string
	Principal  string
	ReplyToken string
	Kind       EventKind
	Text       string
	MessageID  string
	Redelivery bool
	Timestamp  time.Time
}

// Intent is the classified purpose of an inbound event.
type Intent string

const (
	IntentOrderCode     Intent = "order-code"
	IntentMealReport    Intent = "meal-report"
	IntentVisionRequest Intent = "vision-request"
	IntentGeneralChat   Intent = "general-chat"
	// IntentUnsupported marks events the pipeline drops without a reply
	// (stickers, video, location, ...).
	IntentUnsupported Intent = "unsupported"
)

// Modality declares which inputs a generation profile consumes.
type Modality string

const (
	ModalityText      Modality = "text-only"
	ModalityTextImage Modality = "text+image"
)

// GenerationProfile is the static model/prompt/sampling bundle used for one
// intent.
type GenerationProfile struct {
	Intent       Intent
	ModelID      string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Modality     Modality
}

// EntitlementRecord is the single current subscription of a principal.
type EntitlementRecord struct {
	Principal      string    `json:"principal"`
	OrderReference string    `json:"orderReference"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// ExpiresAtMillis returns the expiry as Unix epoch milliseconds.
func (r EntitlementRecord) ExpiresAtMillis() int64 { return r.ExpiresAt.UnixMilli() }

// ActiveAt reports whether the record is still valid at t (strictly before
// expiry).
func (r EntitlementRecord) ActiveAt(t time.Time) bool { return r.ExpiresAt.After(t) }

// Result is the text a pipeline step produced: either the intended reply or
// a fixed fallback substituted after a failure. Both variants are sent.
type Result struct {
	Text     string
	fallback bool
}

// Ok wraps an intended reply.
func Ok(text string) Result { return Result{Text: text} }

// Fallback wraps a substitute reply produced after a failure.
func Fallback(text string) Result { return Result{Text: text, fallback: true} }

// IsFallback reports whether r is a substitute reply.
func (r Result) IsFallback() bool { return r.fallback }

// ReplyOutcome records what happened to one inbound event.
type ReplyOutcome struct {
	EventID    string
	Principal  string
	ReplyToken string
	Intent     Intent
	Result     Result
	// Delivered is true when the platform accepted the reply call.
	Delivered bool
	// Skipped is true for dropped events (unsupported kind or redelivery).
	Skipped bool
}

// MaskPrincipal shortens a platform user id for logs and traces, keeping
// enough to correlate ("U4af4…e1b2"). Short ids are fully hidden.
func MaskPrincipal(p string) string {
	if len(p) <= 9 {
		return "[REDACTED:user]"
	}
	return p[:5] + "…" + p[len(p)-4:]
}
