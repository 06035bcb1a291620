package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-coach-bot/internal/domain"
)

// Dispatcher runs a batch of inbound events through the reply pipeline.
// Implementations must return only after every event settled.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []domain.InboundEvent) []domain.ReplyOutcome
}

// SubscriptionService backs the admin subscription endpoints.
type SubscriptionService interface {
	Register(ctx context.Context, principal, orderRef string, windowDays int) (domain.EntitlementRecord, error)
	Lookup(ctx context.Context, principal string) (domain.EntitlementRecord, error)
}

// Handlers groups the HTTP endpoints. It depends on abstract services to
// keep transport concerns separate from the pipeline.
type Handlers struct {
	dispatcher      Dispatcher
	subs            SubscriptionService
	dispatchTimeout time.Duration
}

// New constructs Handlers. A non-positive dispatchTimeout leaves webhook
// dispatch bounded only by the client timeouts.
func New(d Dispatcher, subs SubscriptionService, dispatchTimeout time.Duration) *Handlers {
	return &Handlers{dispatcher: d, subs: subs, dispatchTimeout: dispatchTimeout}
}
