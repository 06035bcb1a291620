package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newEntitlements(t *testing.T) (*EntitlementService, *memStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := newMemStore(clock.Now)
	svc := NewEntitlementService(store, 30)
	svc.Now = clock.Now
	return svc, store, clock
}

func TestIsEntitled_Lifecycle(t *testing.T) {
	svc, _, clock := newEntitlements(t)
	ctx := context.Background()

	if svc.IsEntitled(ctx, "P") {
		t.Fatalf("expected not entitled before registration")
	}
	rec, err := svc.Register(ctx, "P", "123456789", 30)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if want := clock.Now().Add(30 * 24 * time.Hour); !rec.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", rec.ExpiresAt, want)
	}
	if !svc.IsEntitled(ctx, "P") {
		t.Fatalf("expected entitled right after registration")
	}

	clock.Advance(30*24*time.Hour - time.Millisecond)
	if !svc.IsEntitled(ctx, "P") {
		t.Fatalf("expected entitled just before expiry")
	}
	clock.Advance(time.Millisecond)
	if svc.IsEntitled(ctx, "P") {
		t.Fatalf("expected not entitled at the expiry instant")
	}
}

func TestRegister_ReplacesPreviousRecord(t *testing.T) {
	svc, store, clock := newEntitlements(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "P", "A", 30); err != nil {
		t.Fatalf("register A: %v", err)
	}
	if _, err := svc.Register(ctx, "P", "B", 10); err != nil {
		t.Fatalf("register B: %v", err)
	}
	rec, err := svc.Lookup(ctx, "P")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.OrderReference != "B" || !rec.ExpiresAt.Equal(clock.Now().Add(10*24*time.Hour)) {
		t.Fatalf("expected B with 10-day window, got %+v", rec)
	}
	if store.ttls["P"] != 10*24*time.Hour {
		t.Fatalf("store ttl = %v", store.ttls["P"])
	}

	clock.Advance(11 * 24 * time.Hour)
	if svc.IsEntitled(ctx, "P") {
		t.Fatalf("the 30-day window of A must not survive the replacement")
	}
}

func TestRegister_WindowDefaults(t *testing.T) {
	svc, store, _ := newEntitlements(t)
	svc.WindowDays = 14
	if _, err := svc.Register(context.Background(), "P", "A", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if store.ttls["P"] != 14*24*time.Hour {
		t.Fatalf("expected configured default window, got %v", store.ttls["P"])
	}

	svc.WindowDays = 0
	if _, err := svc.Register(context.Background(), "Q", "A", -3); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if store.ttls["Q"] != DefaultWindowDays*24*time.Hour {
		t.Fatalf("expected built-in default window, got %v", store.ttls["Q"])
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, store, _ := newEntitlements(t)
	for _, tc := range []struct{ p, o string }{{"", "A"}, {"P", ""}, {"  ", " "}} {
		if _, err := svc.Register(context.Background(), tc.p, tc.o, 30); !errors.Is(err, ErrInvalidRegistration) {
			t.Fatalf("Register(%q,%q) err = %v", tc.p, tc.o, err)
		}
	}
	if store.putHits != 0 {
		t.Fatalf("invalid registrations must not reach the store")
	}
}

func TestRegister_StoreFailureSurfaces(t *testing.T) {
	svc, store, _ := newEntitlements(t)
	store.putErr = errBoom
	_, err := svc.Register(context.Background(), "P", "A", 30)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestIsEntitled_StoreFailureIsFalse(t *testing.T) {
	svc, store, _ := newEntitlements(t)
	if _, err := svc.Register(context.Background(), "P", "A", 30); err != nil {
		t.Fatal(err)
	}
	store.getErr = errBoom
	if svc.IsEntitled(context.Background(), "P") {
		t.Fatalf("store failure must read as not entitled")
	}
}

func TestLookup(t *testing.T) {
	svc, store, _ := newEntitlements(t)
	ctx := context.Background()

	if _, err := svc.Lookup(ctx, "P"); !errors.Is(err, ErrNotEntitled) {
		t.Fatalf("expected ErrNotEntitled, got %v", err)
	}
	if _, err := svc.Lookup(ctx, " "); !errors.Is(err, ErrNotEntitled) {
		t.Fatalf("expected ErrNotEntitled for blank principal, got %v", err)
	}
	store.getErr = errBoom
	if _, err := svc.Lookup(ctx, "P"); !errors.Is(err, errBoom) || errors.Is(err, ErrNotEntitled) {
		t.Fatalf("expected store error, got %v", err)
	}
}
