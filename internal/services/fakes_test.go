package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tbourn/go-coach-bot/internal/clients/generation"
	"github.com/tbourn/go-coach-bot/internal/domain"
	"github.com/tbourn/go-coach-bot/internal/repo"
)

// memStore is a SubscriptionStore that honours expiry against its own clock,
// mirroring a TTL-backed store.
type memStore struct {
	mu      sync.Mutex
	now     func() time.Time
	recs    map[string]domain.EntitlementRecord
	ttls    map[string]time.Duration
	getErr  error
	putErr  error
	putHits int
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{now: now, recs: map[string]domain.EntitlementRecord{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) GetSubscription(_ context.Context, principal string) (*domain.EntitlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.recs[principal]
	if !ok || !rec.ExpiresAt.After(m.now()) {
		return nil, repo.ErrNotFound
	}
	return &rec, nil
}

func (m *memStore) PutSubscription(_ context.Context, rec domain.EntitlementRecord, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putHits++
	if m.putErr != nil {
		return m.putErr
	}
	m.recs[rec.Principal] = rec
	m.ttls[rec.Principal] = ttl
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeGenerator answers per request via fn and records calls.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []generation.Request
	fn    func(req generation.Request) (generation.Response, error)
	// hang blocks until ctx is done, like a provider that never answers.
	hang bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req generation.Request) (generation.Response, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.hang {
		<-ctx.Done()
		return generation.Response{}, ctx.Err()
	}
	if g.fn == nil {
		return generation.Response{Candidates: []string{"generated"}}, nil
	}
	return g.fn(req)
}

func (g *fakeGenerator) Calls() []generation.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generation.Request(nil), g.calls...)
}

type sentReply struct {
	token string
	texts []string
}

type fakeMessenger struct {
	mu       sync.Mutex
	replies  []sentReply
	replyErr error
	content  []byte
	ctype    string
	fetchErr error
	// hang blocks Reply until ctx is done.
	hang bool
}

// Reply fails on a done ctx without recording, as the rate-limited client does.
func (m *fakeMessenger) Reply(ctx context.Context, token string, texts []string) error {
	if m.hang {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, sentReply{token: token, texts: texts})
	return m.replyErr
}

func (m *fakeMessenger) FetchContent(_ context.Context, _ string) ([]byte, string, error) {
	if m.fetchErr != nil {
		return nil, "", m.fetchErr
	}
	return m.content, m.ctype, nil
}

func (m *fakeMessenger) byToken() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(m.replies))
	for _, r := range m.replies {
		out[r.token] = r.texts
	}
	return out
}

func (m *fakeMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}

type memLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (l *memLedger) MarkDelivered(_ context.Context, id string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = map[string]bool{}
	}
	if l.seen[id] {
		return false, nil
	}
	l.seen[id] = true
	return true, nil
}

var errBoom = errors.New("boom")
