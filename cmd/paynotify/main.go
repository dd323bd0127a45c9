package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paynotify/internal/app/enrichment"
	"paynotify/internal/app/republish"
	"paynotify/internal/app/webhook"
	"paynotify/internal/backoff"
	"paynotify/internal/codec"
	"paynotify/internal/config"
	ops_http "paynotify/internal/handler/http/ops"
	kafka_handler "paynotify/internal/handler/kafka"
	"paynotify/internal/infrastructure/database"
	kafka_infra "paynotify/internal/infrastructure/kafka"
	customers_pg "paynotify/internal/repository/customer_repo/postgres"
	ledger_pg "paynotify/internal/repository/ledger_repo/postgres"
)

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	return zapConfig.Build()
}

func runningCheck(name string, consumer kafka_infra.Consumer) ops_http.ReadinessCheck {
	return func(context.Context) error {
		if !consumer.Running() {
			return fmt.Errorf("%s is not running", name)
		}
		return nil
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Payment notification service starting...")

	ctxMain, cancelMain := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelMain()

	appLogger.Info("Waiting for database to be available...")
	dbConfig := cfg.Database()
	db, err := database.ConnectWithRetry(ctxMain, dbConfig, 10, 5*time.Second, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	appLogger.Info("Running database migrations...")
	if err := database.RunMigrations(cfg.DBConfig.MigrationsPath, dbConfig, appLogger); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	kafkaBrokers := cfg.GetKafkaBrokers()
	if cfg.KafkaEnsureTopics {
		topicsCtx, cancel := context.WithTimeout(ctxMain, 10*time.Second)
		err = kafka_infra.EnsureTopics(topicsCtx, kafkaBrokers,
			[]string{cfg.KafkaPaymentEventsTopic, cfg.KafkaEnrichedEventsTopic},
			kafka_infra.TopicSpec{Partitions: cfg.KafkaTopicPartitions, ReplicationFactor: cfg.KafkaTopicReplication},
			appLogger,
		)
		cancel()
		if err != nil {
			appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
		}
	}

	eventCodec, err := codec.New(appLogger.With(zap.String("component", "Codec")))
	if err != nil {
		appLogger.Fatal("Failed to load event schema", zap.Error(err))
	}

	kafkaProducer := kafka_infra.NewProducer(kafkaBrokers, appLogger.With(zap.String("component", "KafkaProducer")))
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	customerRepository := customers_pg.NewCustomerRepository(db)
	ledgerRepository := ledger_pg.NewLedgerRepository(db)

	enrichmentService := enrichment.NewEnrichmentService(
		customerRepository,
		appLogger.With(zap.String("component", "EnrichmentService")),
	)
	publisher := republish.NewPublisher(
		kafkaProducer,
		eventCodec,
		ledgerRepository,
		cfg.KafkaEnrichedEventsTopic,
		appLogger.With(zap.String("component", "Republisher")),
	)

	resolver, err := webhook.NewStaticSubscriptionResolver(cfg.WebhookSubscriptionURL)
	if err != nil {
		appLogger.Fatal("Invalid webhook subscription", zap.Error(err))
	}
	notifier := webhook.NewRestClient(
		webhook.NewHTTPClient(cfg.WebhookTimeout),
		cfg.WebhookAPIKey,
		appLogger.With(zap.String("component", "WebhookClient")),
	)

	paymentEventsConsumer := kafka_infra.NewConsumer(
		kafka_infra.ConsumerConfig{
			Brokers: kafkaBrokers,
			GroupID: cfg.KafkaPaymentConsumerGroup,
			Topic:   cfg.KafkaPaymentEventsTopic,
		},
		backoff.NewSupervisor("payment-events", cfg.IngestPolicy(),
			appLogger.With(zap.String("component", "IngestSupervisor"))),
		kafka_handler.PaymentEventMessageHandler(
			eventCodec, enrichmentService, publisher,
			appLogger.With(zap.String("component", "PaymentEventHandler")),
		),
		appLogger.With(zap.String("component", "PaymentEventsConsumer")),
	)

	enrichedEventsConsumer := kafka_infra.NewConsumer(
		kafka_infra.ConsumerConfig{
			Brokers: kafkaBrokers,
			GroupID: cfg.KafkaEnrichedConsumerGroup,
			Topic:   cfg.KafkaEnrichedEventsTopic,
		},
		backoff.NewSupervisor("enriched-payment-events", cfg.DeliveryPolicy(),
			appLogger.With(zap.String("component", "DeliverySupervisor")),
			backoff.WithHandlerTimeout(cfg.WebhookTimeout+5*time.Second)),
		kafka_handler.EnrichedPaymentEventMessageHandler(
			eventCodec, resolver, notifier,
			appLogger.With(zap.String("component", "EnrichedPaymentEventHandler")),
		),
		appLogger.With(zap.String("component", "EnrichedEventsConsumer")),
	)

	opsHandler := ops_http.NewOpsHandler(map[string]ops_http.ReadinessCheck{
		"database":                 db.PingContext,
		"payment-events-consumer":  runningCheck("payment events consumer", paymentEventsConsumer),
		"enriched-events-consumer": runningCheck("enriched events consumer", enrichedEventsConsumer),
	}, appLogger.With(zap.String("component", "OpsHandler")))

	httpServer := &http.Server{
		Addr:              cfg.OpsHTTPAddr,
		Handler:           ops_http.NewRouter(opsHandler, cfg.OpsCORSOrigins, appLogger.With(zap.String("component", "HTTPServer"))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	consumers := map[string]kafka_infra.Consumer{
		"payment events":  paymentEventsConsumer,
		"enriched events": enrichedEventsConsumer,
	}
	for name, consumer := range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appLogger.Info("Starting Kafka consumer", zap.String("consumer", name))
			if err := consumer.Consume(ctxMain); err != nil {
				appLogger.Error("Kafka consumer failed", zap.String("consumer", name), zap.Error(err))
				cancelMain()
			}
			appLogger.Info("Kafka consumer stopped", zap.String("consumer", name))
		}()
	}

	<-ctxMain.Done()
	appLogger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	consumersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(consumersDone)
	}()
	select {
	case <-consumersDone:
		appLogger.Info("Kafka consumers stopped.")
	case <-shutdownCtx.Done():
		appLogger.Warn("Kafka consumers did not stop before the shutdown deadline.")
	}

	appLogger.Info("Application gracefully shut down.")
}
