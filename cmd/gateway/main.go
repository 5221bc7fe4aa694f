package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/gateway"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceVersion = "0.1.0"

type config struct {
	Port              string        `envconfig:"PORT" default:"8080"`
	CatalogServiceURL string        `envconfig:"CATALOG_SERVICE_URL" required:"true"`
	CartServiceURL    string        `envconfig:"CART_SERVICE_URL" required:"true"`
	OrdersServiceURL  string        `envconfig:"ORDERS_SERVICE_URL" required:"true"`
	UpstreamTimeout   time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	OTLPEndpoint      string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
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

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	client := telemetry.HTTPClient(cfg.UpstreamTimeout)
	handler := gateway.NewHandler(gateway.Services{
		Catalog: gateway.NewServiceProxy(cfg.CatalogServiceURL, client),
		Cart:    gateway.NewServiceProxy(cfg.CartServiceURL, client),
		Orders:  gateway.NewServiceProxy(cfg.OrdersServiceURL, client),
	}, cfg.RequestTimeout, logger)

	if err := server.Run(ctx, logger, "gateway", ":"+cfg.Port, otelhttp.NewHandler(handler.Routes(), "gateway")); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
