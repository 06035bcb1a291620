package repo

import (
	"context"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-coach-bot/internal/domain"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)
	store, err := NewRedisStore("redis://" + srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, srv
}

func TestRedisStore_PutGet_RoundTripAndKeyLayout(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	exp := time.UnixMilli(time.Now().Add(30 * 24 * time.Hour).UnixMilli())
	rec := domain.EntitlementRecord{Principal: "U1", OrderReference: "123456789", ExpiresAt: exp}
	require.NoError(t, store.PutSubscription(ctx, rec, 30*24*time.Hour))

	got, err := store.GetSubscription(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "U1", got.Principal)
	assert.Equal(t, "123456789", got.OrderReference)
	assert.Equal(t, exp.UnixMilli(), got.ExpiresAtMillis())

	raw, err := srv.Get("sub:U1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderReference":"123456789","expiresAt":`+strconv.FormatInt(exp.UnixMilli(), 10)+`}`, raw)
	assert.Equal(t, 30*24*time.Hour, srv.TTL("sub:U1"))
}

func TestRedisStore_TTLExpiryHidesRecord(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	rec := domain.EntitlementRecord{Principal: "U2", OrderReference: "A", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.PutSubscription(ctx, rec, time.Hour))

	srv.FastForward(time.Hour + time.Second)

	_, err := store.GetSubscription(ctx, "U2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Replace(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSubscription(ctx, domain.EntitlementRecord{Principal: "U3", OrderReference: "A", ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}, 30*24*time.Hour))
	require.NoError(t, store.PutSubscription(ctx, domain.EntitlementRecord{Principal: "U3", OrderReference: "B", ExpiresAt: time.Now().Add(10 * 24 * time.Hour)}, 10*24*time.Hour))

	got, err := store.GetSubscription(ctx, "U3")
	require.NoError(t, err)
	assert.Equal(t, "B", got.OrderReference)
	assert.Equal(t, 10*24*time.Hour, srv.TTL("sub:U3"))
}

func TestRedisStore_RejectsNonPositiveTTL(t *testing.T) {
	store, _ := newRedisStore(t)
	err := store.PutSubscription(context.Background(), domain.EntitlementRecord{Principal: "U"}, 0)
	assert.Error(t, err)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, srv := newRedisStore(t)
	require.NoError(t, srv.Set("sub:U4", "not-json"))
	_, err := store.GetSubscription(context.Background(), "U4")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_MarkDelivered(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	first, err := store.MarkDelivered(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkDelivered(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	srv.FastForward(2 * time.Minute)
	afterTTL, err := store.MarkDelivered(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, afterTTL)
}

func TestRedisStore_FromClientAndPing(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer srv.Close()
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))
}

func TestNewRedisStore_Errors(t *testing.T) {
	_, err := NewRedisStore("://bad")
	assert.Error(t, err)

	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	addr := srv.Addr()
	srv.Close()
	_, err = NewRedisStore("redis://" + addr)
	assert.Error(t, err)
}
