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
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceVersion = "0.1.0"

type config struct {
	Port         string        `envconfig:"PORT" default:"8082"`
	PostgresURL  string        `envconfig:"POSTGRES_URL" required:"true"`
	RedisAddr    string        `envconfig:"REDIS_ADDR"`
	CacheTTL     time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"15m"`
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

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "catalog", serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	dsn, err := telemetry.WithSearchPath(cfg.PostgresURL, "catalog")
	if err != nil {
		logger.Error("invalid POSTGRES_URL", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", dsn)
	if err != nil {
		logger.Error("failed to open database connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		cache = catalog.NewRedisCache(rdb, cfg.CacheTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, product cache disabled")
	}

	service := catalog.NewService(catalog.NewProductRepository(db), cache, logger)
	handler := catalog.NewHandler(service, logger)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("GET /metrics", metricsHandler)

	if err := server.Run(ctx, logger, "catalog service", ":"+cfg.Port, telemetry.HTTPHandler("catalog", mux)); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
