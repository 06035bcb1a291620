package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-coach-bot/internal/clients/generation"
	"github.com/tbourn/go-coach-bot/internal/clients/line"
	"github.com/tbourn/go-coach-bot/internal/config"
	httpapi "github.com/tbourn/go-coach-bot/internal/http"
	"github.com/tbourn/go-coach-bot/internal/http/handlers"
	"github.com/tbourn/go-coach-bot/internal/intent"
	"github.com/tbourn/go-coach-bot/internal/observability"
	"github.com/tbourn/go-coach-bot/internal/prompts"
	"github.com/tbourn/go-coach-bot/internal/services"
)

func newServeCmd(cfg func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg())
		},
	}
}

func newClassifier(cfg config.Config) *intent.Classifier {
	return intent.New(intent.Options{
		MinDigits:    cfg.OrderCodeMinDigits,
		MaxDigits:    cfg.OrderCodeMaxDigits,
		MealKeywords: cfg.MealKeywords,
	})
}

// buildOrchestrator wires the reply pipeline against st and the two
// outbound clients.
func buildOrchestrator(cfg config.Config, st store) (*services.ReplyOrchestrator, error) {
	set, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}
	if cfg.Line.ChannelAccessToken == "" {
		log.Warn().Msg("LINE_CHANNEL_ACCESS_TOKEN is empty; replies will be rejected")
	}
	if cfg.Line.ChannelSecret == "" {
		log.Warn().Msg("LINE_CHANNEL_SECRET is empty; webhook signatures are not verified")
	}

	return &services.ReplyOrchestrator{
		Classifier:   newClassifier(cfg),
		Entitlements: services.NewEntitlementService(st, cfg.WindowDays),
		Profiles:     services.NewProfileSelector(cfg.Generation.TextModel, cfg.Generation.VisionModel, set),
		Generator: generation.New(generation.Options{
			BaseURL:    cfg.Generation.BaseURL,
			APIKey:     cfg.Generation.APIKey,
			Timeout:    cfg.Generation.Timeout,
			MaxRetries: cfg.Generation.MaxRetries,
		}),
		Messenger: line.New(line.Options{
			AccessToken:     cfg.Line.ChannelAccessToken,
			APIBase:         cfg.Line.APIBase,
			DataBase:        cfg.Line.DataBase,
			Timeout:         cfg.Line.Timeout,
			RPS:             cfg.Line.RPS,
			Burst:           cfg.Line.Burst,
			MaxContentBytes: cfg.MaxImageBytes,
		}),
		Ledger:        st,
		RedeliveryTTL: cfg.RedeliveryTTL,
		ReplyTimeout:  cfg.Line.Timeout,
		Catalog:       services.CatalogFor(cfg.Locale),
		Location:      cfg.Location,
	}, nil
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// webhook batches within WRITE_TIMEOUT.
func serve(ctx context.Context, cfg config.Config) error {
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	st, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	orch, err := buildOrchestrator(cfg, st)
	if err != nil {
		return err
	}
	h := handlers.New(orch, orch.Entitlements, cfg.DispatchTimeout)

	r := gin.New()
	httpapi.RegisterRoutes(r, h, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("store", cfg.Store.Backend).
			Str("locale", cfg.Locale.String()).
			Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	return nil
}
