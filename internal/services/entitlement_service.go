// Package services – EntitlementService
//
// EntitlementService answers whether a principal currently holds a live
// subscription and records new or renewed subscriptions. Read failures never
// surface to the pipeline: an unreachable store is treated as "not entitled"
// and logged.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-coach-bot/internal/domain"
	"github.com/tbourn/go-coach-bot/internal/repo"
)

// DefaultWindowDays is used when neither the caller nor the service
// configuration specify a subscription window.
const DefaultWindowDays = 30

// SubscriptionStore persists one EntitlementRecord per principal.
// Implementations return repo.ErrNotFound when nothing live is stored.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, principal string) (*domain.EntitlementRecord, error)
	PutSubscription(ctx context.Context, rec domain.EntitlementRecord, ttl time.Duration) error
}

// EntitlementService gates pipeline access on subscription state.
type EntitlementService struct {
	Store SubscriptionStore
	// WindowDays is the default subscription length for Register.
	WindowDays int
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewEntitlementService constructs an EntitlementService.
func NewEntitlementService(store SubscriptionStore, windowDays int) *EntitlementService {
	return &EntitlementService{Store: store, WindowDays: windowDays, Now: time.Now}
}

func (s *EntitlementService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IsEntitled reports whether principal has a record expiring strictly after
// now. Missing records, expired records and store errors all yield false.
func (s *EntitlementService) IsEntitled(ctx context.Context, principal string) bool {
	ctx, span := otel.Tracer("services/EntitlementService").Start(ctx, "IsEntitled",
		trace.WithAttributes(attribute.String("user.id", domain.MaskPrincipal(principal))),
	)
	defer span.End()

	rec, err := s.Store.GetSubscription(ctx, principal)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Ctx(ctx).Warn().Err(err).Str("principal", domain.MaskPrincipal(principal)).Msg("entitlement lookup failed")
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Bool("entitled", false))
		return false
	}
	ok := rec.ActiveAt(s.now())
	span.SetAttributes(attribute.Bool("entitled", ok))
	return ok
}

// Register creates or replaces principal's subscription for windowDays days
// from now. A non-positive windowDays uses the service default. The stored
// record expires together with the window.
func (s *EntitlementService) Register(ctx context.Context, principal, orderRef string, windowDays int) (domain.EntitlementRecord, error) {
	ctx, span := otel.Tracer("services/EntitlementService").Start(ctx, "Register",
		trace.WithAttributes(attribute.String("user.id", domain.MaskPrincipal(principal))),
	)
	defer span.End()

	principal = strings.TrimSpace(principal)
	orderRef = strings.TrimSpace(orderRef)
	if principal == "" || orderRef == "" {
		return domain.EntitlementRecord{}, ErrInvalidRegistration
	}
	if windowDays <= 0 {
		windowDays = s.WindowDays
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	window := time.Duration(windowDays) * 24 * time.Hour
	now := s.now()
	rec := domain.EntitlementRecord{
		Principal:      principal,
		OrderReference: orderRef,
		ExpiresAt:      time.UnixMilli(now.Add(window).UnixMilli()),
	}
	if err := s.Store.PutSubscription(ctx, rec, window); err != nil {
		span.RecordError(err)
		return domain.EntitlementRecord{}, fmt.Errorf("register subscription: %w", err)
	}
	log.Ctx(ctx).Info().
		Str("principal", domain.MaskPrincipal(principal)).
		Int("window_days", windowDays).
		Time("expires_at", rec.ExpiresAt).
		Msg("subscription registered")
	return rec, nil
}

// Lookup returns principal's live record, ErrNotEntitled when there is none,
// or a wrapped store error.
func (s *EntitlementService) Lookup(ctx context.Context, principal string) (domain.EntitlementRecord, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return domain.EntitlementRecord{}, ErrNotEntitled
	}
	rec, err := s.Store.GetSubscription(ctx, principal)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.EntitlementRecord{}, ErrNotEntitled
	}
	if err != nil {
		return domain.EntitlementRecord{}, fmt.Errorf("lookup subscription: %w", err)
	}
	if !rec.ActiveAt(s.now()) {
		return domain.EntitlementRecord{}, ErrNotEntitled
	}
	return *rec, nil
}
