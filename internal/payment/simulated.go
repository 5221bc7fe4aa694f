package payment

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Simulated approves every supported method after a fixed delay and
// fabricates provider ids. Net banking also returns a bank redirect URL.
type Simulated struct {
	delay       time.Duration
	redirectURL string
	now         func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulated(delay time.Duration, redirectURL string) *Simulated {
	return &Simulated{
		delay:       delay,
		redirectURL: redirectURL,
		now:         time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Simulated) ProcessPayment(ctx context.Context, req Request) (Result, error) {
	var prefix string
	switch req.Method {
	case domain.PaymentMethodCreditCard, domain.PaymentMethodDebitCard:
		prefix = "card"
	case domain.PaymentMethodUPI:
		prefix = "upi"
	case domain.PaymentMethodNetBanking:
		prefix = "nb"
	default:
		return Result{Success: false, Error: "Unsupported payment method"}, nil
	}

	if err := s.wait(ctx); err != nil {
		return Result{}, err
	}

	result := Result{Success: true, PaymentID: s.id(prefix)}
	if req.Method == domain.PaymentMethodNetBanking && s.redirectURL != "" {
		q := url.Values{}
		q.Set("amount", req.Amount.StringFixed(2))
		q.Set("order", req.OrderID)
		result.RedirectURL = s.redirectURL + "?" + q.Encode()
	}
	return result, nil
}

func (s *Simulated) Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (Result, error) {
	if paymentID == "" {
		return Result{Success: false, Error: "Refund processing failed"}, nil
	}
	if err := s.wait(ctx); err != nil {
		return Result{}, err
	}
	return Result{Success: true, PaymentID: s.id("refund")}, nil
}

func (s *Simulated) Verify(ctx context.Context, paymentID, orderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return paymentID != "", nil
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("payment interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// id returns <prefix>_<unix millis>_<9 base-36 chars>.
func (s *Simulated) id(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[s.rnd.Intn(len(base36))]
	}
	return prefix + "_" + strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + string(suffix)
}
