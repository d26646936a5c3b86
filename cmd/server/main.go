package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kidora-labs/notification/internal/config"
	"github.com/kidora-labs/notification/internal/infrastructure/directory"
	"github.com/kidora-labs/notification/internal/infrastructure/mailer"
	"github.com/kidora-labs/notification/internal/infrastructure/postgres"
	kafkaconsumer "github.com/kidora-labs/notification/internal/kafka"
	"github.com/kidora-labs/notification/internal/orchestrator"
	"github.com/kidora-labs/notification/internal/registry"
	transporthttp "github.com/kidora-labs/notification/internal/transport/http"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Msg("starting kidora-notification")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping failed")
	}
	log.Info().Msg("postgres connected")

	// ── Store, Registry & Channel Adapters ────────────────────────────────────
	store := postgres.New(pool)
	reg := registry.New()
	dir := directory.New(cfg.Directory.BaseURL, cfg.Directory.ServiceToken)

	var mail orchestrator.Mailer
	if cfg.Email.PostmarkServerToken != "" {
		mail, err = mailer.New(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.Sender)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create postmark mailer")
		}
		log.Info().Str("sender", cfg.Email.Sender).Msg("postmark mailer configured")
	} else {
		mail = mailer.Log{}
		log.Warn().Msg("no postmark token configured, emails will be logged only")
	}

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch := orchestrator.New(store, reg, dir, mail)

	// ── HTTP Server ───────────────────────────────────────────────────────────
	handler := transporthttp.NewHandler(store, reg, orch)
	router := transporthttp.NewRouter(handler, cfg.Auth.JWTSecret)

	// ── Kafka Consumer ────────────────────────────────────────────────────────
	consumer, err := kafkaconsumer.New(
		cfg.Kafka.Brokers,
		cfg.Kafka.ConsumerGroupID,
		cfg.Kafka.Topics,
		orch,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	go consumer.Start(ctx)
	log.Info().Strs("topics", cfg.Kafka.Topics).Msg("kafka consumer started")

	// ── Purge Jobs ────────────────────────────────────────────────────────────
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.TTL.PurgeIntervalMins) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if count, err := store.PurgeExpired(context.Background()); err != nil {
					log.Error().Err(err).Msg("expired notification purge failed")
				} else if count > 0 {
					log.Info().Int64("deleted", count).Msg("expired notifications purged")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if count, err := store.PurgeOlderThan(context.Background(), cfg.TTL.RetentionDays); err != nil {
					log.Error().Err(err).Msg("notification retention purge failed")
				} else {
					log.Info().Int64("deleted", count).Int("older_than_days", cfg.TTL.RetentionDays).Msg("notification retention purge completed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// ── Start HTTP Server ─────────────────────────────────────────────────────
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := router.Start(":" + cfg.Server.Port); err != nil {
			log.Info().Msg("HTTP server stopped")
		}
	}()

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Let in-flight email dispatches finish instead of dropping them.
	orch.Drain()

	log.Info().Msg("kidora-notification stopped")
}
