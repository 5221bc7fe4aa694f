package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "payment-gateway",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// Breaker wraps a Gateway with a circuit breaker. Only transport errors
// count as failures; a declined payment keeps the circuit closed.
// While the circuit is open calls fail fast with gobreaker.ErrOpenState.
type Breaker struct {
	next     Gateway
	payments *gobreaker.CircuitBreaker[Result]
	verifies *gobreaker.CircuitBreaker[bool]
}

func NewBreaker(next Gateway, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Breaker{
		next:     next,
		payments: gobreaker.NewCircuitBreaker[Result](settings),
		verifies: gobreaker.NewCircuitBreaker[bool](settings),
	}
}

func (b *Breaker) ProcessPayment(ctx context.Context, req Request) (Result, error) {
	return b.payments.Execute(func() (Result, error) {
		return b.next.ProcessPayment(ctx, req)
	})
}

func (b *Breaker) Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (Result, error) {
	return b.payments.Execute(func() (Result, error) {
		return b.next.Refund(ctx, paymentID, amount, reason)
	})
}

func (b *Breaker) Verify(ctx context.Context, paymentID, orderID string) (bool, error) {
	return b.verifies.Execute(func() (bool, error) {
		return b.next.Verify(ctx, paymentID, orderID)
	})
}

func (b *Breaker) State() gobreaker.State {
	return b.payments.State()
}
