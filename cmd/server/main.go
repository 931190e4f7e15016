package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/rl1809/cropchain/internal/adapter/auth"
	"github.com/rl1809/cropchain/internal/adapter/handler"
	"github.com/rl1809/cropchain/internal/adapter/messaging"
	"github.com/rl1809/cropchain/internal/adapter/metrics"
	"github.com/rl1809/cropchain/internal/adapter/storage"
	"github.com/rl1809/cropchain/internal/adapter/telemetry"
	"github.com/rl1809/cropchain/internal/config"
	"github.com/rl1809/cropchain/internal/core/service"
	"github.com/rl1809/cropchain/internal/port"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", handler.ServiceName).Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = logger.Level(cfg.Level())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, handler.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Initialize MySQL
	if cfg.MigrateOnStart {
		if err := storage.Migrate(cfg.MySQLDSN, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate mysql")
		}
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect mysql")
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpen)
	db.SetMaxIdleConns(cfg.MySQLMaxIdle)
	db.SetConnMaxLifetime(cfg.MySQLConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mysql")
	}
	logger.Info().Msg("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	logger.Info().Msg("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	var publisher port.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events to kafka")
	} else {
		publisher = messaging.NewLogPublisher(logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(registry)

	tokens, err := auth.NewTokenMaker(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token maker")
	}

	// Initialize services
	ledger := service.NewInventoryLedger(mysqlAdapter, logger)
	services := handler.Services{
		Orders: service.NewOrderService(service.OrderDependencies{
			Orders:   mysqlAdapter,
			Products: mysqlAdapter,
			Users:    mysqlAdapter,
			Carts:    mysqlAdapter,
			Cache:    redisAdapter,
			Events:   publisher,
			Metrics:  serverMetrics,
		}, ledger, logger),
		Conversations: service.NewConversationService(mysqlAdapter, logger),
		Chat: service.NewChatHub(mysqlAdapter, mysqlAdapter, serverMetrics, service.ChatHubConfig{
			HistoryLimit: cfg.ChatHistoryLimit,
			QueueSize:    cfg.ChatQueueSize,
		}, logger),
		Users:      service.NewUserService(mysqlAdapter, auth.NewBcryptHasher(cfg.BcryptCost), tokens, logger),
		Catalog:    service.NewCatalogService(mysqlAdapter, mysqlAdapter, mysqlAdapter, ledger, logger),
		Categories: service.NewCategoryService(mysqlAdapter),
		Carts:      service.NewCartService(mysqlAdapter, mysqlAdapter),
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	health := handler.NewHealthReporter(map[string]handler.Pinger{
		"mysql": mysqlAdapter,
		"redis": redisAdapter,
	}, 10*time.Second, logger)
	health.Register(grpcServer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runOrderRecovery(ctx, services.Orders, cfg.OrderRecoveryInterval, cfg.PendingOrderMaxAge, logger)
	}()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("failed to listen")
	}

	go func() {
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(services, tokens, logger,
		handler.WithMetrics(serverMetrics, serverMetrics.Handler()),
		handler.WithChatTimeouts(cfg.ChatReadTimeout, cfg.ChatWriteTimeout),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Stop HTTP server; hijacked chat connections are not tracked by Shutdown
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}
	logger.Info().Msg("HTTP server stopped")

	// Stop background loops, then gRPC server
	cancel()
	wg.Wait()
	grpcServer.GracefulStop()
	logger.Info().Msg("gRPC server stopped")

	if err := publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("close event publisher")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("flush traces")
	}

	// Close connections
	rdb.Close()
	db.Close()
	logger.Info().Msg("connections closed")
}

// runOrderRecovery returns stock held by aborted or stale pending orders
// until ctx is done.
func runOrderRecovery(ctx context.Context, orders *service.OrderService, interval, pendingAge time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := orders.RecoverAborted(ctx, pendingAge)
			if err != nil {
				logger.Error().Err(err).Msg("order recovery failed")
				continue
			}
			if n > 0 {
				logger.Info().Int("recovered", n).Msg("order recovery pass")
			}
		}
	}
}
