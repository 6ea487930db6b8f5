package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgkafka "github.com/openlms/lending-service/pkg/kafka"
	"github.com/openlms/lending-service/pkg/observability"
	pkgpostgres "github.com/openlms/lending-service/pkg/postgres"

	"github.com/openlms/lending-service/internal/application/usecase"
	"github.com/openlms/lending-service/internal/domain/event"
	"github.com/openlms/lending-service/internal/domain/port"
	"github.com/openlms/lending-service/internal/domain/service"
	"github.com/openlms/lending-service/internal/infrastructure/config"
	"github.com/openlms/lending-service/internal/infrastructure/messaging"
	pgrepo "github.com/openlms/lending-service/internal/infrastructure/persistence/postgres"
	"github.com/openlms/lending-service/internal/presentation/rest"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	cfg.Validate()

	logger := observability.InitLogger(observability.LogConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: "json",
	})
	slog.SetDefault(logger)

	logger.Info("starting lending-service", "http_port", cfg.HTTPPort)

	// Metrics.
	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }() //nolint:errcheck

	// Database connection.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	pgCfg := pkgpostgres.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	}
	pool, err := pkgpostgres.NewPool(dbCtx, pgCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if migErr := pkgpostgres.RunMigrations(pgCfg.DSN(), "file://internal/infrastructure/persistence/postgres/migrations"); migErr != nil {
		logger.Warn("migration warning", "error", migErr)
	}

	// Infrastructure adapters.
	lendingRepo := pgrepo.NewLendingRepo(pool)
	bookRepo := pgrepo.NewBookDetailsRepo(pool)
	readerRepo := pgrepo.NewReaderDetailsRepo(pool)

	producer := pkgkafka.NewProducer(pkgkafka.Config{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()
	publisher := messaging.NewPublisher(producer, logger)

	clock := port.SystemClock{}
	policy := service.NewLendingPolicy(lendingRepo)
	terms := usecase.LendingTerms{
		DurationDays:    cfg.Lending.DurationDays,
		FinePerDayCents: cfg.Lending.FinePerDayCents,
	}

	// Use cases.
	createUC := usecase.NewCreateLendingUseCase(lendingRepo, bookRepo, readerRepo, policy, publisher, clock, terms, logger)
	returnUC := usecase.NewReturnLendingUseCase(lendingRepo, publisher, clock, logger)
	queryUC := usecase.NewQueryLendingsUseCase(lendingRepo, clock)
	syncUC := usecase.NewSyncLendingUseCase(lendingRepo, bookRepo, readerRepo, clock, terms, logger)

	// Consumers, one per upstream topic.
	consumerCfg := pkgkafka.Config{
		Brokers:       cfg.Kafka.Brokers,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}
	consumers := []*pkgkafka.Consumer{
		pkgkafka.NewConsumer(consumerCfg, event.TopicLendings,
			messaging.NewLendingConsumer(syncUC, logger).Handle, logger),
		pkgkafka.NewConsumer(consumerCfg, event.TopicBooks,
			messaging.NewBookConsumer(bookRepo, logger).Handle, logger),
		pkgkafka.NewConsumer(consumerCfg, event.TopicReaders,
			messaging.NewReaderConsumer(readerRepo, logger).Handle, logger),
	}

	// HTTP server.
	mux := http.NewServeMux()
	rest.NewHealthHandler(pool, logger).RegisterRoutes(mux)
	rest.NewLendingHandler(createUC, returnUC, queryUC, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsHandler)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, len(consumers)+1)

	for _, c := range consumers {
		defer c.Close()
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("consumer error: %w", err)
			}
		}()
	}

	go func() {
		logger.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("lending-service stopped")
}
