package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/db"
	"github.com/bookswap/bookswap-backend/pkg/kafka"
	"github.com/bookswap/bookswap-backend/pkg/instance"
	"github.com/bookswap/bookswap-backend/pkg/logger"
	"github.com/bookswap/bookswap-backend/pkg/metrics"
	"github.com/bookswap/bookswap-backend/pkg/migrate"
	"github.com/bookswap/bookswap-backend/pkg/outbox"
	"github.com/bookswap/bookswap-backend/pkg/outbox/registry"
	"github.com/bookswap/bookswap-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	broker, topics, err := openBroker(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap broker", err)
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logg.Error(context.Background(), "error closing broker", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(topics)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Broker:        broker,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"broker":      broker.Name(),
		"instance":    instance.GetID(),
	})
	metrics.Serve(ctx, cfg.Outbox.MetricsAddr, prometheus.DefaultGatherer, logg)
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// openBroker returns the configured broker with the topic names in that
// broker's naming scheme.
func openBroker(ctx context.Context, cfg *config.Config, logg *logger.Logger) (outbox.Broker, registry.Topics, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Outbox.Broker)) {
	case config.OutboxBrokerKafka:
		w, err := kafka.NewWriter(cfg.Kafka, logg)
		if err != nil {
			return nil, registry.Topics{}, err
		}
		return w, registry.Topics{Purchases: cfg.Kafka.PurchaseTopic, Listings: cfg.Kafka.ListingTopic}, nil
	case config.OutboxBrokerPubSub:
		c, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, registry.Topics{}, err
		}
		return c, registry.Topics{Purchases: cfg.PubSub.PurchaseTopic, Listings: cfg.PubSub.ListingTopic}, nil
	default:
		return nil, registry.Topics{}, fmt.Errorf("unsupported outbox broker %q", cfg.Outbox.Broker)
	}
}
