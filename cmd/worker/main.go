package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notification"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/worker"
)

const serviceVersion = "0.1.0"

type config struct {
	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS" required:"true"`
	ConsumerGroup   string   `envconfig:"CONSUMER_GROUP" default:"notification-worker"`
	PostgresURL     string   `envconfig:"POSTGRES_URL" required:"true"`
	EmailServiceURL string   `envconfig:"EMAIL_SERVICE_URL" required:"true"`
	AdminEmail      string   `envconfig:"ADMIN_EMAIL" default:"orders@powerfuel.in"`
	OTLPEndpoint    string   `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	dsn, err := telemetry.WithSearchPath(cfg.PostgresURL, "orders")
	if err != nil {
		logger.Error("invalid POSTGRES_URL", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	mailer := email.NewClient(cfg.EmailServiceURL, telemetry.HTTPClient(10*time.Second))
	notifications := notification.NewService(notification.NewNotificationRepository(db), mailer, cfg.AdminEmail, logger)
	handler := worker.NewNotificationHandler(notifications, logger)

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, notification.Topic, cfg.ConsumerGroup, logger)
	defer func() { _ = consumer.Close() }()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers, "topic", notification.Topic)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("consumer stopped")
}
