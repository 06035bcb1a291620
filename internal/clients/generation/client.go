// Package generation is a thin client for OpenAI-compatible chat-completions
// endpoints. It maps the pipeline's provider-neutral Request onto the wire
// format, retries transient failures with exponential backoff, and returns
// every non-empty completion candidate.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Roles understood by chat-completions endpoints.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ErrEmptyCompletion is returned when the provider answered 200 without any
// usable text.
var ErrEmptyCompletion = errors.New("generation: empty completion")

// Part is one piece of a message: either text or an image URL (which may be
// a data URL).
type Part struct {
	Text     string
	ImageURL string
}

// Message is a role-tagged list of parts.
type Message struct {
	Role  string
	Parts []Part
}

// Request is a provider-neutral generation call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response carries the non-empty candidates in provider order.
type Response struct {
	Candidates []string
}

// First returns the first candidate, if any.
func (r Response) First() (string, bool) {
	if len(r.Candidates) == 0 {
		return "", false
	}
	return r.Candidates[0], true
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation: status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	// BaseBackoff is the first retry delay; defaults to 500ms.
	BaseBackoff time.Duration
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Client calls {BaseURL}/chat/completions.
type Client struct {
	http        *resty.Client
	maxRetries  int
	baseBackoff time.Duration
}

// New builds a Client from opts.
func New(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	if opts.APIKey != "" {
		rc.SetAuthToken(opts.APIKey)
	}
	bb := opts.BaseBackoff
	if bb <= 0 {
		bb = 500 * time.Millisecond
	}
	mr := opts.MaxRetries
	if mr < 0 {
		mr = 0
	}
	return &Client{http: rc, maxRetries: mr, baseBackoff: bb}
}

// wire types

type wireImageURL struct {
	URL string `json:"url"`
}

type wirePart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func toWire(req Request) wireRequest {
	out := wireRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		// A single text part goes out as a plain string.
		if len(m.Parts) == 1 && m.Parts[0].ImageURL == "" {
			out.Messages = append(out.Messages, wireMessage{Role: m.Role, Content: m.Parts[0].Text})
			continue
		}
		parts := make([]wirePart, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.ImageURL != "" {
				parts = append(parts, wirePart{Type: "image_url", ImageURL: &wireImageURL{URL: p.ImageURL}})
				continue
			}
			parts = append(parts, wirePart{Type: "text", Text: p.Text})
		}
		out.Messages = append(out.Messages, wireMessage{Role: m.Role, Content: parts})
	}
	return out
}

// Generate sends req and returns the non-empty candidates. 429 and 5xx
// responses and transport errors are retried up to MaxRetries times.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, span := otel.Tracer("clients/generation").Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("gen.model", req.Model),
			attribute.Int("gen.max_tokens", req.MaxTokens),
		),
	)
	defer span.End()

	body := toWire(req)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseBackoff
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.Reset()

	var (
		out      Response
		attempts int
	)
	op := func() error {
		attempts++
		res, err := c.once(ctx, body)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return backoff.Permanent(err)
			}
			if errors.Is(err, ErrEmptyCompletion) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		out = res
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxRetries)), ctx)
	err := backoff.Retry(op, policy)
	span.SetAttributes(attribute.Int("gen.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}
	return out, nil
}

func (c *Client) once(ctx context.Context, body wireRequest) (Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/chat/completions")
	if err != nil {
		return Response{}, fmt.Errorf("generation request: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return Response{}, &StatusError{Code: resp.StatusCode(), Body: truncate(resp.String(), 512)}
	}
	var wr wireResponse
	if err := json.Unmarshal(resp.Body(), &wr); err != nil {
		return Response{}, fmt.Errorf("decode completion: %w", err)
	}
	var out Response
	for _, ch := range wr.Choices {
		if t := strings.TrimSpace(ch.Message.Content); t != "" {
			out.Candidates = append(out.Candidates, t)
		}
	}
	if len(out.Candidates) == 0 {
		return Response{}, ErrEmptyCompletion
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
