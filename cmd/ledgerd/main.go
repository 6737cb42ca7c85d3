package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/api"
	"github.com/example/inventory-ledger/internal/auth"
	"github.com/example/inventory-ledger/internal/command"
	"github.com/example/inventory-ledger/internal/config"
	"github.com/example/inventory-ledger/internal/domain/ledger"
	"github.com/example/inventory-ledger/internal/infrastructure/cache"
	"github.com/example/inventory-ledger/internal/infrastructure/kafka"
	"github.com/example/inventory-ledger/internal/infrastructure/store"
	"github.com/example/inventory-ledger/internal/logger"
	"github.com/example/inventory-ledger/internal/monitor"
	"github.com/example/inventory-ledger/internal/oplog"
	"github.com/example/inventory-ledger/internal/projection"
	"github.com/example/inventory-ledger/internal/query"
	"github.com/example/inventory-ledger/internal/readmodel"
	"github.com/example/inventory-ledger/internal/syncer"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("ledgerd", false)
		log.Fatal().Err(err).Msg("configuration error")
	}

	logger.Init("ledgerd", cfg.Development)
	logger.SetLevel(cfg.LogLevel)

	log.Info().
		Strs("kafka_brokers", cfg.KafkaBrokers).
		Str("kafka_topic", cfg.KafkaTopic).
		Str("store_backend", cfg.StoreBackend).
		Msg("starting inventory ledger")

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	// Event store and cached record store per backend
	var (
		eventStore  store.EventStoreInterface
		recordStore store.RecordStoreInterface
		view        readmodel.InventoryView
		db          *sql.DB
	)
	switch cfg.StoreBackend {
	case "postgres":
		db, err = store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer db.Close()
		eventStore = store.NewPostgresEventStore(db, producer)
		recordStore = store.NewPostgresRecordStore(db)
		view = readmodel.NewPostgresView(db)
		log.Info().Msg("connected to postgres")
	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("aws configuration failed")
		}
		eventStore = store.NewDynamoEventStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoEventTable, cfg.DynamoSnapshotTable)
		recordStore = store.NewRecordStore()
		view = readmodel.NewMemoryView()
		log.Info().Str("table", cfg.DynamoEventTable).Msg("using dynamodb event store")
	case "memory":
		eventStore = store.NewEventStore(producer)
		recordStore = store.NewRecordStore()
		view = readmodel.NewMemoryView()
		log.Warn().Msg("using in-memory event store, events will not survive restarts")
	default:
		log.Fatal().Str("backend", cfg.StoreBackend).Msg("unknown store backend")
	}

	// Operation metrics and audit trail
	metrics := oplog.NewMetrics(prometheus.DefaultRegisterer)
	ops := oplog.NewRecorder(oplog.DefaultCapacity, metrics)
	if db != nil {
		ops.AttachSink(oplog.NewPostgresSink(db))
	}

	// Optional Redis cache
	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		redisCache = cache.NewRedisCache(client)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache enabled")
	}

	policy := ledger.SyncPolicy{
		TrustedSources:  cfg.TrustedSyncSources,
		WindowStartHour: cfg.SyncWindowStartHour,
		WindowEndHour:   cfg.SyncWindowEndHour,
	}
	ledgerSvc := ledger.NewService(eventStore, recordStore, policy, ops)

	var coordinator *syncer.Coordinator
	if cfg.StockFeedURL != "" {
		feed := syncer.NewHTTPFeed(cfg.StockFeedURL, cfg.StockFeedTimeout)
		coordinator = syncer.NewCoordinator(ledgerSvc, feed, cfg.BreakerFailures, cfg.BreakerRecovery)
		log.Info().Str("url", cfg.StockFeedURL).Msg("sync coordinator enabled")
	}

	thresholds := monitor.Thresholds{
		LowStockMargin:      cfg.LowStockMargin,
		CriticalStockMargin: cfg.CriticalStockMargin,
		OverstockThreshold:  cfg.OverstockThreshold,
	}
	mon, err := monitor.NewMonitor(eventStore, recordStore, ops, thresholds)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid stock thresholds")
	}
	if coordinator != nil {
		// Channel breakers surface in the health report as they are created.
		coordinator.OnBreakerCreate = mon.RegisterBreaker
	}

	cmdHandler := command.NewHandler(ledgerSvc, coordinator, redisCache)
	queryHandler, err := query.NewHandler(view, redisCache, thresholds)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid stock thresholds")
	}

	// Read models are projected in-process: replay the log, then follow Kafka.
	projector := projection.NewProjector(view, redisCache)
	if err := projector.Replay(ctx, eventStore); err != nil {
		log.Fatal().Err(err).Msg("read model replay failed")
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ConsumerGroup)
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("projection consumer stopped")
		}
	}()

	// Authentication is enabled only when a secret is configured
	var jwtService *auth.JWTService
	var authHandlers *api.AuthHandlers
	if cfg.JWTSecret != "" {
		jwtService = auth.NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
		authHandlers = api.NewAuthHandlers(jwtService, cfg.ServiceClients)
	} else {
		log.Warn().Msg("JWT_SECRET not set, authentication disabled")
	}

	handlers := api.NewHandlers(cmdHandler, queryHandler, ledgerSvc, mon)
	router := api.NewRouter(handlers, authHandlers, jwtService, promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server started")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	wg.Wait()
}
