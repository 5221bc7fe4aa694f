package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/validation"
)

const serviceVersion = "0.1.0"

type config struct {
	Port         string        `envconfig:"PORT" default:"8084"`
	MinLatency   time.Duration `envconfig:"EMAIL_MIN_LATENCY" default:"50ms"`
	Jitter       time.Duration `envconfig:"EMAIL_JITTER" default:"100ms"`
	OTLPEndpoint string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
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

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "email", serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	handler := email.NewHandler(validation.New(), cfg.MinLatency, cfg.Jitter, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", handler.HandleSend)
	mux.Handle("GET /metrics", metricsHandler)

	if err := server.Run(ctx, logger, "email service", ":"+cfg.Port, telemetry.HTTPHandler("email", mux)); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
