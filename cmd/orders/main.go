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
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/coupons"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notification"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payment"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceVersion = "0.1.0"

type config struct {
	Port               string        `envconfig:"PORT" default:"8081"`
	PostgresURL        string        `envconfig:"POSTGRES_URL" required:"true"`
	RedisAddr          string        `envconfig:"REDIS_ADDR"`
	KafkaBrokers       []string      `envconfig:"KAFKA_BROKERS"`
	EmailServiceURL    string        `envconfig:"EMAIL_SERVICE_URL"`
	AdminEmail         string        `envconfig:"ADMIN_EMAIL" default:"orders@powerfuel.in"`
	OTLPEndpoint       string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	PaymentDelay       time.Duration `envconfig:"PAYMENT_DELAY" default:"2s"`
	PaymentRedirectURL string        `envconfig:"PAYMENT_REDIRECT_URL" default:"https://pay.powerfuel.in/netbanking"`
	CartTTL            time.Duration `envconfig:"CART_TTL" default:"24h"`
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

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "orders", serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

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

	var mailer notification.Mailer
	if cfg.EmailServiceURL != "" {
		mailer = email.NewClient(cfg.EmailServiceURL, telemetry.HTTPClient(10*time.Second))
	}
	notifications := notification.NewService(notification.NewNotificationRepository(db), mailer, cfg.AdminEmail, logger)

	var notifier orders.Notifier = notifications
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, notification.Topic)
		defer func() { _ = producer.Close() }()
		notifier = notification.NewEventPublisher(producer)
		logger.Info("publishing order events", "topic", notification.Topic, "brokers", cfg.KafkaBrokers)
	}

	metrics, err := telemetry.NewCheckoutMetrics(otel.Meter("storefront/orders"))
	if err != nil {
		logger.Error("failed to create checkout metrics", "error", err)
		os.Exit(1)
	}

	couponService := coupons.NewService(coupons.NewCouponRepository(db))
	gateway := payment.NewBreaker(
		payment.NewSimulated(cfg.PaymentDelay, cfg.PaymentRedirectURL),
		payment.DefaultBreakerConfig(),
		logger,
	)

	opts := []orders.Option{
		orders.WithCoupons(couponService),
		orders.WithMetrics(metrics),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		opts = append(opts, orders.WithCarts(cart.NewManager(cart.NewRedisStorage(rdb, cfg.CartTTL))))
	}

	service := orders.NewService(orders.NewOrderRepository(db), gateway, notifier, logger, opts...)
	handler := orders.NewHandler(service, logger)
	notificationHandler := notification.NewHandler(notifications, logger)
	couponHandler := coupons.NewHandler(couponService, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", handler.HandleCheckout)
	mux.HandleFunc("GET /orders", handler.HandleList)
	mux.HandleFunc("GET /orders/{id}", handler.HandleGet)
	mux.HandleFunc("PATCH /orders/{id}/status", handler.HandleUpdateStatus)
	mux.HandleFunc("GET /users/{userId}/orders", handler.HandleListByUser)
	mux.HandleFunc("GET /users/{userId}/notifications", notificationHandler.HandleListForUser)
	mux.HandleFunc("POST /users/{userId}/notifications/{id}/read", notificationHandler.HandleMarkRead)
	mux.HandleFunc("GET /coupons", couponHandler.HandleList)
	mux.HandleFunc("GET /coupons/{code}", couponHandler.HandlePreview)
	mux.HandleFunc("GET /healthz", handler.HandleHealth(func() string { return gateway.State().String() }))
	mux.Handle("GET /metrics", metricsHandler)

	if err := server.Run(ctx, logger, "orders service", ":"+cfg.Port, telemetry.HTTPHandler("orders", mux)); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
