package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// CheckoutMetrics counts checkout outcomes and status changes.
type CheckoutMetrics struct {
	placed   metric.Int64Counter
	failed   metric.Int64Counter
	rejected metric.Int64Counter
	updates  metric.Int64Counter
}

func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	placed, err := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders placed successfully"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("payments_failed_total",
		metric.WithDescription("Orders cancelled because payment failed"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("checkout_rejected_total",
		metric.WithDescription("Checkout requests rejected before an order was created"))
	if err != nil {
		return nil, err
	}
	updates, err := meter.Int64Counter("order_status_updates_total",
		metric.WithDescription("Order status changes"))
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{placed: placed, failed: failed, rejected: rejected, updates: updates}, nil
}

func (m *CheckoutMetrics) OrderPlaced(ctx context.Context, method domain.PaymentMethod) {
	m.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(method))))
}

func (m *CheckoutMetrics) PaymentFailed(ctx context.Context, method domain.PaymentMethod) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(method))))
}

func (m *CheckoutMetrics) CheckoutRejected(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *CheckoutMetrics) StatusUpdated(ctx context.Context, status domain.OrderStatus) {
	m.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
