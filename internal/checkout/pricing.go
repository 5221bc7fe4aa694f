package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const Currency = "INR"

// Pricing holds the storefront's charge rules.
type Pricing struct {
	TaxRate           decimal.Decimal
	FreeShippingAbove decimal.Decimal
	ShippingFee       decimal.Decimal
	CODCharge         decimal.Decimal
	CODMinimum        decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:           decimal.RequireFromString("0.18"),
		FreeShippingAbove: decimal.NewFromInt(999),
		ShippingFee:       decimal.NewFromInt(99),
		CODCharge:         decimal.NewFromInt(50),
		CODMinimum:        decimal.NewFromInt(500),
	}
}

type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	COD      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Quote prices a subtotal. Tax and shipping are computed on the subtotal
// before discount; the discount is taken off the final total.
func (p Pricing) Quote(subtotal decimal.Decimal, method domain.PaymentMethod, discount decimal.Decimal) Quote {
	q := Quote{
		Subtotal: subtotal,
		Tax:      subtotal.Mul(p.TaxRate).Round(2),
		Shipping: p.ShippingFee,
		COD:      decimal.Zero,
		Discount: discount,
	}
	if subtotal.GreaterThan(p.FreeShippingAbove) {
		q.Shipping = decimal.Zero
	}
	if method.IsCOD() {
		q.COD = p.CODCharge
	}
	q.Total = q.Subtotal.Add(q.Tax).Add(q.Shipping).Add(q.COD).Sub(q.Discount)
	return q
}

func (p Pricing) MeetsCODMinimum(subtotal decimal.Decimal) bool {
	return subtotal.GreaterThanOrEqual(p.CODMinimum)
}
