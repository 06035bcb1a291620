// This file provides the GORM-backed subscription store and redelivery
// ledger. SQLite has no native key expiry, so every read filters on
// expires_at and a janitor loop purges expired rows.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-coach-bot/internal/domain"
)

// SQLStore implements the subscription store and event ledger on GORM.
type SQLStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewSQLStore wraps db. Callers are expected to have run AutoMigrate.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{DB: db, Now: time.Now}
}

func (s *SQLStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetSubscription returns the live record for principal or ErrNotFound.
func (s *SQLStore) GetSubscription(ctx context.Context, principal string) (*domain.EntitlementRecord, error) {
	var row domain.Subscription
	err := s.DB.WithContext(ctx).
		Where("principal = ? AND expires_at > ?", principal, s.now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := row.Record()
	return &rec, nil
}

// PutSubscription inserts or replaces the principal's record. The ttl
// argument is implied by rec.ExpiresAt for SQL and only sanity-checked.
func (s *SQLStore) PutSubscription(ctx context.Context, rec domain.EntitlementRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	row := domain.Subscription{
		Principal:      rec.Principal,
		OrderReference: rec.OrderReference,
		ExpiresAt:      rec.ExpiresAt.UTC(),
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "principal"}},
		DoUpdates: clause.AssignmentColumns([]string{"order_reference", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

// MarkDelivered records eventID and reports whether this is the first
// delivery seen within ttl.
func (s *SQLStore) MarkDelivered(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	now := s.now()
	first := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ? AND expires_at <= ?", eventID, now).
			Delete(&domain.DeliveredEvent{}).Error; err != nil {
			return err
		}
		err := tx.Create(&domain.DeliveredEvent{EventID: eventID, CreatedAt: now, ExpiresAt: now.Add(ttl)}).Error
		if err != nil {
			if isUniqueViolation(err) {
				return nil
			}
			return err
		}
		first = true
		return nil
	})
	return first, err
}

// PurgeExpired deletes expired subscriptions and ledger rows and returns the
// number of rows removed.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64
	for _, model := range []any{&domain.Subscription{}, &domain.DeliveredEvent{}} {
		res := s.DB.WithContext(ctx).Where("expires_at <= ?", now).Delete(model)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

// RunJanitor purges expired rows every interval until ctx is done.
func (s *SQLStore) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge expired rows")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged expired rows")
			}
		}
	}
}

// Ping verifies the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// isUniqueViolation matches GORM's translated error and the plain-text
// errors glebarez/sqlite returns for UNIQUE and PRIMARY KEY violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "primary key")
}
