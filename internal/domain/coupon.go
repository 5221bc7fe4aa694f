package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponTypePercentage  CouponType = "percentage"
	CouponTypeFixedAmount CouponType = "fixed_amount"
)

type Coupon struct {
	ID                    string           `json:"id"`
	Code                  string           `json:"code"`
	Type                  CouponType       `json:"type"`
	Value                 decimal.Decimal  `json:"value"`
	MinimumOrderAmount    decimal.Decimal  `json:"minimum_order_amount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount,omitempty"`
	UsageLimit            *int             `json:"usage_limit,omitempty"`
	UsedCount             int              `json:"used_count"`
	IsActive              bool             `json:"is_active"`
	ValidFrom             time.Time        `json:"valid_from"`
	ValidUntil            *time.Time       `json:"valid_until,omitempty"`
}

// CouponUsage is recorded in the same transaction that creates the order.
type CouponUsage struct {
	CouponID string
	UserID   string
	OrderID  string
}
