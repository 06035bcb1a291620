package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-coach-bot/internal/config"
	"github.com/tbourn/go-coach-bot/internal/repo"
	"github.com/tbourn/go-coach-bot/internal/services"
)

const janitorInterval = 10 * time.Minute

// store is what the binary needs from either backend.
type store interface {
	services.SubscriptionStore
	services.EventLedger
	Ping(ctx context.Context) error
}

// openStore connects the configured backend and verifies it answers. The
// SQL backend also starts the expiry janitor, bound to ctx. The returned
// close func is never nil.
func openStore(ctx context.Context, cfg config.StoreConfig) (store, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
		}
		closeDB := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		if err := repo.AutoMigrate(db); err != nil {
			_ = closeDB()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		st := repo.NewSQLStore(db)
		go st.RunJanitor(ctx, janitorInterval)
		log.Info().Str("backend", cfg.Backend).Str("path", cfg.DBPath).Msg("store ready")
		return st, closeDB, nil

	case "redis":
		st, err := repo.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info().Str("backend", cfg.Backend).Msg("store ready")
		return st, st.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
