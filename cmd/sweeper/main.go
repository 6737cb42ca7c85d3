package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/config"
	"github.com/example/inventory-ledger/internal/domain/ledger"
	"github.com/example/inventory-ledger/internal/infrastructure/kafka"
	"github.com/example/inventory-ledger/internal/infrastructure/store"
	"github.com/example/inventory-ledger/internal/logger"
)

// Sweeper releases reservations whose TTL has elapsed. Expiry is detected by
// scanning the log, never by timers inside the ledger, so a missed tick only
// delays a release.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("sweeper", false)
		log.Fatal().Err(err).Msg("configuration error")
	}

	logger.Init("sweeper", cfg.Development)
	logger.SetLevel(cfg.LogLevel)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer db.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	eventStore := store.NewPostgresEventStore(db, producer)
	policy := ledger.SyncPolicy{
		TrustedSources:  cfg.TrustedSyncSources,
		WindowStartHour: cfg.SyncWindowStartHour,
		WindowEndHour:   cfg.SyncWindowEndHour,
	}
	svc := ledger.NewService(eventStore, store.NewPostgresRecordStore(db), policy, nil)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
	}()

	log.Info().Dur("interval", cfg.SweepInterval).Msg("sweeper started")

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, svc)
		}
	}
}

func sweep(ctx context.Context, svc *ledger.Service) {
	start := time.Now()
	released, err := svc.ReleaseExpired(ctx, start)
	if err != nil {
		log.Error().Err(err).Msg("sweep failed")
		return
	}
	if released > 0 {
		log.Info().
			Int("released", released).
			Dur("duration", time.Since(start)).
			Msg("expired reservations released")
	}
}
