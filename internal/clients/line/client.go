// Package line implements the messaging-platform side of the bot: webhook
// payload decoding, signature validation and an outbound client for the
// reply and content endpoints. Outbound calls share one rate limiter so a
// burst of webhook events cannot exceed the channel's API quota.
package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Platform limits for one reply call.
const (
	MaxMessagesPerReply = 5
	MaxTextRunes        = 5000
)

var (
	// ErrContentTooLarge is returned when message content exceeds the
	// configured byte cap.
	ErrContentTooLarge = errors.New("line: content exceeds size limit")
	// ErrNoMessages is returned for an empty reply.
	ErrNoMessages = errors.New("line: no messages to send")
)

// APIError is a non-2xx platform response.
type APIError struct {
	Op   string
	Code int
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line %s: status %d: %s", e.Op, e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	AccessToken     string
	APIBase         string
	DataBase        string
	Timeout         time.Duration
	RPS             float64
	Burst           int
	MaxContentBytes int64
	HTTPClient      *http.Client
}

// Client calls the reply and content endpoints.
type Client struct {
	api      *resty.Client
	data     *resty.Client
	limiter  *rate.Limiter
	maxBytes int64
}

// New builds a Client. Zero RPS disables pacing.
func New(opts Options) *Client {
	mk := func(base string) *resty.Client {
		var rc *resty.Client
		if opts.HTTPClient != nil {
			rc = resty.NewWithClient(opts.HTTPClient)
		} else {
			rc = resty.New()
		}
		rc.SetBaseURL(strings.TrimRight(base, "/"))
		if opts.AccessToken != "" {
			rc.SetAuthToken(opts.AccessToken)
		}
		if opts.Timeout > 0 {
			rc.SetTimeout(opts.Timeout)
		}
		return rc
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	maxBytes := opts.MaxContentBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Client{api: mk(opts.APIBase), data: mk(opts.DataBase), limiter: lim, maxBytes: maxBytes}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// Reply sends up to MaxMessagesPerReply text messages against replyToken in
// one call. Extra messages are dropped.
func (c *Client) Reply(ctx context.Context, replyToken string, texts []string) error {
	ctx, span := otel.Tracer("clients/line").Start(ctx, "Reply",
		trace.WithAttributes(attribute.Int("line.messages", len(texts))),
	)
	defer span.End()

	if len(texts) == 0 {
		return ErrNoMessages
	}
	if len(texts) > MaxMessagesPerReply {
		texts = texts[:MaxMessagesPerReply]
	}
	body := replyRequest{ReplyToken: replyToken, Messages: make([]textMessage, 0, len(texts))}
	for _, t := range texts {
		body.Messages = append(body.Messages, textMessage{Type: "text", Text: t})
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/v2/bot/message/reply")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("line reply: %w", err)
	}
	if resp.IsError() {
		err := &APIError{Op: "reply", Code: resp.StatusCode(), Body: resp.String()}
		span.RecordError(err)
		return err
	}
	return nil
}

// FetchContent downloads the binary content of messageID and returns it
// with its content type. Bodies above MaxContentBytes are rejected.
func (c *Client) FetchContent(ctx context.Context, messageID string) ([]byte, string, error) {
	ctx, span := otel.Tracer("clients/line").Start(ctx, "FetchContent",
		trace.WithAttributes(attribute.String("line.message_id", messageID)),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("line content: %w", err)
	}
	resp, err := c.data.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetPathParam("id", messageID).
		Get("/v2/bot/message/{id}/content")
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("line content: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(raw, 512))
		return nil, "", &APIError{Op: "content", Code: resp.StatusCode(), Body: string(snippet)}
	}
	data, err := io.ReadAll(io.LimitReader(raw, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("line content: read: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, "", ErrContentTooLarge
	}
	ct := resp.Header().Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	span.SetAttributes(attribute.Int("line.content_bytes", len(data)))
	return data, ct, nil
}
