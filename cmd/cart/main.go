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
	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/validation"
)

const serviceVersion = "0.1.0"

type config struct {
	Port         string        `envconfig:"PORT" default:"8083"`
	RedisAddr    string        `envconfig:"REDIS_ADDR" required:"true"`
	CartTTL      time.Duration `envconfig:"CART_TTL" default:"24h"`
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

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "cart", serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	manager := cart.NewManager(cart.NewRedisStorage(rdb, cfg.CartTTL))
	handler := cart.NewHandler(manager, validation.New(), logger)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("GET /metrics", metricsHandler)

	if err := server.Run(ctx, logger, "cart service", ":"+cfg.Port, telemetry.HTTPHandler("cart", mux)); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
