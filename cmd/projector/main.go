package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/config"
	"github.com/example/inventory-ledger/internal/infrastructure/cache"
	"github.com/example/inventory-ledger/internal/infrastructure/kafka"
	"github.com/example/inventory-ledger/internal/infrastructure/store"
	"github.com/example/inventory-ledger/internal/logger"
	"github.com/example/inventory-ledger/internal/projection"
	"github.com/example/inventory-ledger/internal/readmodel"
)

// Standalone read-side worker. Runs the same projection as ledgerd but against
// the shared postgres read models, for deployments that scale the read side
// separately.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("projector", false)
		log.Fatal().Err(err).Msg("configuration error")
	}

	logger.Init("projector", cfg.Development)
	logger.SetLevel(cfg.LogLevel)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer db.Close()

	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		redisCache = cache.NewRedisCache(client)
	}

	view := readmodel.NewPostgresView(db)
	projector := projection.NewProjector(view, redisCache)

	eventStore := store.NewPostgresEventStore(db, nil)
	if err := projector.Replay(ctx, eventStore); err != nil {
		log.Fatal().Err(err).Msg("read model replay failed")
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ConsumerGroup)
	defer consumer.Close()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
	}()

	log.Info().
		Strs("kafka_brokers", cfg.KafkaBrokers).
		Str("group", cfg.ConsumerGroup).
		Msg("projector started")

	if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("projection consumer stopped")
	}
}
