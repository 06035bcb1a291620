// This file provides the Redis-backed subscription store and redelivery
// ledger. Expiry is delegated to Redis key TTLs.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-coach-bot/internal/domain"
)

const (
	subscriptionKeyPrefix = "sub:"
	eventKeyPrefix        = "evt:"
)

// subscriptionValue is the JSON stored under "sub:<principal>".
type subscriptionValue struct {
	OrderReference string `json:"orderReference"`
	ExpiresAt      int64  `json:"expiresAt"` // epoch millis
}

// RedisStore implements the subscription store and event ledger on Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore parses url, connects and pings the server.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SubscriptionKey returns the Redis key for principal.
func SubscriptionKey(principal string) string { return subscriptionKeyPrefix + principal }

// GetSubscription returns the record for principal or ErrNotFound when the
// key is absent (never written or expired by TTL).
func (s *RedisStore) GetSubscription(ctx context.Context, principal string) (*domain.EntitlementRecord, error) {
	raw, err := s.client.Get(ctx, SubscriptionKey(principal)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var v subscriptionValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode subscription %s: %w", principal, err)
	}
	return &domain.EntitlementRecord{
		Principal:      principal,
		OrderReference: v.OrderReference,
		ExpiresAt:      time.UnixMilli(v.ExpiresAt),
	}, nil
}

// PutSubscription overwrites the principal's record and sets the key TTL.
func (s *RedisStore) PutSubscription(ctx context.Context, rec domain.EntitlementRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	payload, err := json.Marshal(subscriptionValue{
		OrderReference: rec.OrderReference,
		ExpiresAt:      rec.ExpiresAtMillis(),
	})
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}
	return s.client.Set(ctx, SubscriptionKey(rec.Principal), payload, ttl).Err()
}

// MarkDelivered sets "evt:<id>" if absent and reports whether it was the
// first delivery within ttl.
func (s *RedisStore) MarkDelivered(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, eventKeyPrefix+eventID, 1, ttl).Result()
}
