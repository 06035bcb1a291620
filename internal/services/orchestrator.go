// Package services – ReplyOrchestrator
//
// ReplyOrchestrator drives one webhook batch through the pipeline. Every
// event runs on its own goroutine and the batch returns only when all of
// them finished. Per event the steps are strictly sequential:
//
//	dedupe → classify → (register | gate → profile → generate) → reply
//
// Failures never cross event boundaries: generation, media and store errors
// become a fixed fallback text, and panics are recovered and turned into the
// event's fallback as well. Each event gets exactly one reply call.
package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-coach-bot/internal/clients/generation"
	"github.com/tbourn/go-coach-bot/internal/domain"
)

// Reply limits of the messaging platform.
const (
	MaxReplyParts = 5
	MaxReplyRunes = 5000
)

// DefaultReplyTimeout bounds a reply call when ReplyTimeout is unset.
const DefaultReplyTimeout = 10 * time.Second

// EventClassifier assigns an intent to an event and extracts order codes.
type EventClassifier interface {
	Classify(ev domain.InboundEvent) domain.Intent
	OrderCode(ev domain.InboundEvent) (string, bool)
}

// Generator produces completions for a generation request.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (generation.Response, error)
}

// Messenger sends replies and resolves message content on the platform.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, texts []string) error
	FetchContent(ctx context.Context, messageID string) ([]byte, string, error)
}

// EventLedger remembers delivered event ids for ttl. MarkDelivered reports
// true the first time an id is seen.
type EventLedger interface {
	MarkDelivered(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// ReplyOrchestrator wires the pipeline collaborators together.
type ReplyOrchestrator struct {
	Classifier   EventClassifier
	Entitlements *EntitlementService
	Profiles     *ProfileSelector
	Generator    Generator
	Messenger    Messenger

	// Ledger is optional; nil disables redelivery dedupe.
	Ledger        EventLedger
	RedeliveryTTL time.Duration

	// ReplyTimeout bounds the reply call, which runs detached from the
	// dispatch deadline so a fallback still goes out after a slow
	// generation. Zero means DefaultReplyTimeout.
	ReplyTimeout time.Duration

	Catalog  Catalog
	Location *time.Location
}

// Dispatch processes events concurrently and returns one outcome per event,
// in input order.
func (o *ReplyOrchestrator) Dispatch(ctx context.Context, events []domain.InboundEvent) []domain.ReplyOutcome {
	out := make([]domain.ReplyOutcome, len(events))
	var wg sync.WaitGroup
	for i, ev := range events {
		wg.Add(1)
		go func(i int, ev domain.InboundEvent) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					log.Ctx(ctx).Error().
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Str("event_id", ev.EventID).
						Msg("event handler panicked")
					out[i] = domain.ReplyOutcome{
						EventID:    ev.EventID,
						Principal:  ev.Principal,
						ReplyToken: ev.ReplyToken,
						Result:     domain.Fallback(o.Catalog.ChatFallback),
					}
					eventsTotal.WithLabelValues("", "fallback").Inc()
				}
			}()
			out[i] = o.handle(ctx, ev)
		}(i, ev)
	}
	wg.Wait()
	return out
}

func (o *ReplyOrchestrator) handle(ctx context.Context, ev domain.InboundEvent) domain.ReplyOutcome {
	ctx, span := otel.Tracer("services/ReplyOrchestrator").Start(ctx, "HandleEvent",
		trace.WithAttributes(
			attribute.String("event.id", ev.EventID),
			attribute.String("event.kind", string(ev.Kind)),
			attribute.String("user.id", domain.MaskPrincipal(ev.Principal)),
		),
	)
	defer span.End()

	out := domain.ReplyOutcome{
		EventID:    ev.EventID,
		Principal:  ev.Principal,
		ReplyToken: ev.ReplyToken,
	}
	lg := log.Ctx(ctx).With().Str("event_id", ev.EventID).Str("principal", domain.MaskPrincipal(ev.Principal)).Logger()

	if o.seenBefore(ctx, ev) {
		lg.Info().Bool("redelivery", ev.Redelivery).Msg("duplicate event skipped")
		out.Skipped = true
		eventsTotal.WithLabelValues("", "duplicate").Inc()
		return out
	}

	out.Intent = o.Classifier.Classify(ev)
	span.SetAttributes(attribute.String("intent", string(out.Intent)))
	if out.Intent == domain.IntentUnsupported {
		lg.Debug().Str("kind", string(ev.Kind)).Msg("unsupported event dropped")
		out.Skipped = true
		eventsTotal.WithLabelValues(string(out.Intent), "skipped").Inc()
		return out
	}

	out.Result = o.compose(ctx, ev, out.Intent)

	texts := SplitReply(out.Result.Text, MaxReplyRunes, MaxReplyParts)
	if err := o.reply(ctx, ev.ReplyToken, texts); err != nil {
		lg.Error().Err(err).Msg("reply failed")
		span.RecordError(err)
		replyFailures.Inc()
	} else {
		out.Delivered = true
	}

	result := "ok"
	if out.Result.IsFallback() {
		result = "fallback"
	}
	eventsTotal.WithLabelValues(string(out.Intent), result).Inc()
	lg.Info().
		Str("intent", string(out.Intent)).
		Str("result", result).
		Bool("delivered", out.Delivered).
		Msg("event handled")
	return out
}

// reply sends texts on a context that keeps ctx's values (span, logger) but
// not its deadline: the dispatch budget may already be spent by generation.
func (o *ReplyOrchestrator) reply(ctx context.Context, token string, texts []string) error {
	timeout := o.ReplyTimeout
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return o.Messenger.Reply(rctx, token, texts)
}

// seenBefore consults the ledger. Ledger errors are logged and the event is
// processed as new.
func (o *ReplyOrchestrator) seenBefore(ctx context.Context, ev domain.InboundEvent) bool {
	if o.Ledger == nil || ev.EventID == "" {
		return false
	}
	ttl := o.RedeliveryTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	first, err := o.Ledger.MarkDelivered(ctx, ev.EventID, ttl)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event_id", ev.EventID).Msg("event ledger unavailable")
		return false
	}
	return !first
}

// compose produces the reply text for a classified event. It never fails:
// every error path yields a Fallback result. A panic inside a step is
// recovered here so the event still gets its fallback reply.
func (o *ReplyOrchestrator) compose(ctx context.Context, ev domain.InboundEvent, intent domain.Intent) (res domain.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Ctx(ctx).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("event_id", ev.EventID).
				Msg("pipeline step panicked")
			res = domain.Fallback(o.Catalog.FallbackFor(intent))
		}
	}()

	if intent == domain.IntentOrderCode {
		return o.register(ctx, ev)
	}

	if !o.Entitlements.IsEntitled(ctx, ev.Principal) {
		gateDecisions.WithLabelValues("denied").Inc()
		return domain.Ok(o.Catalog.GateRejection)
	}
	gateDecisions.WithLabelValues("allowed").Inc()

	profile := o.Profiles.Select(intent)
	text, err := o.generate(ctx, ev, profile)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("event_id", ev.EventID).
			Str("intent", string(intent)).
			Msg("generation failed; sending fallback")
		return domain.Fallback(o.Catalog.FallbackFor(intent))
	}
	return domain.Ok(text)
}

func (o *ReplyOrchestrator) register(ctx context.Context, ev domain.InboundEvent) domain.Result {
	code, ok := o.Classifier.OrderCode(ev)
	if !ok {
		return domain.Fallback(o.Catalog.RegisterFailure)
	}
	rec, err := o.Entitlements.Register(ctx, ev.Principal, code, 0)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("event_id", ev.EventID).Msg("order registration failed")
		return domain.Fallback(o.Catalog.RegisterFailure)
	}
	loc := o.Location
	if loc == nil {
		loc = time.UTC
	}
	return domain.Ok(o.Catalog.Confirmation(code, rec.ExpiresAt.In(loc)))
}

func (o *ReplyOrchestrator) generate(ctx context.Context, ev domain.InboundEvent, p domain.GenerationProfile) (string, error) {
	req, err := o.buildRequest(ctx, ev, p)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := o.Generator.Generate(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	generationLatency.WithLabelValues(string(p.Intent), status).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	for _, c := range resp.Candidates {
		if t := strings.TrimSpace(c); t != "" {
			return t, nil
		}
	}
	return "", ErrEmptyGeneration
}

func (o *ReplyOrchestrator) buildRequest(ctx context.Context, ev domain.InboundEvent, p domain.GenerationProfile) (generation.Request, error) {
	req := generation.Request{
		Model:       p.ModelID,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Parts: []generation.Part{{Text: p.SystemPrompt}}},
		},
	}

	if p.Modality != domain.ModalityTextImage {
		req.Messages = append(req.Messages, generation.Message{
			Role:  generation.RoleUser,
			Parts: []generation.Part{{Text: ev.Text}},
		})
		return req, nil
	}

	if ev.MessageID == "" {
		return req, fmt.Errorf("%w: event has no content reference", ErrMediaUnavailable)
	}
	data, contentType, err := o.Messenger.FetchContent(ctx, ev.MessageID)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	if len(data) == 0 {
		return req, fmt.Errorf("%w: empty content", ErrMediaUnavailable)
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	req.Messages = append(req.Messages, generation.Message{
		Role: generation.RoleUser,
		Parts: []generation.Part{
			{Text: o.Catalog.VisionInstruction},
			{ImageURL: dataURL},
		},
	})
	return req, nil
}
