package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const DefaultFailureMessage = "Payment processing failed"

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Request struct {
	Amount   decimal.Decimal
	Currency string
	Method   domain.PaymentMethod
	OrderID  string
	Customer Customer
}

// Result is what the storefront sees of a payment attempt. A declined payment
// is a Result with Success false, not an error.
type Result struct {
	Success     bool   `json:"success"`
	PaymentID   string `json:"payment_id,omitempty"`
	Error       string `json:"error,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// FailureMessage returns the result's error text, or the default message.
func (r Result) FailureMessage() string {
	if r.Error != "" {
		return r.Error
	}
	return DefaultFailureMessage
}

// Gateway is the payment provider boundary. Errors are reserved for
// transport failures; business declines are reported in Result.
type Gateway interface {
	ProcessPayment(ctx context.Context, req Request) (Result, error)
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (Result, error)
	Verify(ctx context.Context, paymentID, orderID string) (bool, error)
}
