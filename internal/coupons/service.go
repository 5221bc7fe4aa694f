package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var (
	ErrNotFound     = errors.New("invalid coupon code")
	ErrInactive     = errors.New("coupon is no longer active")
	ErrNotYetValid  = errors.New("coupon is not valid yet")
	ErrExpired      = errors.New("coupon has expired")
	ErrUsageLimit   = errors.New("coupon usage limit reached")
	ErrAlreadyUsed  = errors.New("you have already used this coupon")
	ErrBelowMinimum = errors.New("order is below the coupon minimum")
	ErrUnknownType  = errors.New("unknown coupon type")
)

type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	HasUsage(ctx context.Context, couponID, userID string) (bool, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.Coupon, error)
}

// Discount is a coupon that passed every check, with the amount it takes off.
type Discount struct {
	Coupon domain.Coupon
	Amount decimal.Decimal
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Apply checks code for userID against subtotal and returns the discount it grants.
// Business rule failures are returned as the package's sentinel errors.
func (s *Service) Apply(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*Discount, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, ErrNotFound
	}

	if err := Check(*coupon, s.now()); err != nil {
		return nil, err
	}

	used, err := s.repo.HasUsage(ctx, coupon.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("check coupon usage: %w", err)
	}
	if used {
		return nil, ErrAlreadyUsed
	}

	if subtotal.LessThan(coupon.MinimumOrderAmount) {
		return nil, fmt.Errorf("%w of ₹%s", ErrBelowMinimum, coupon.MinimumOrderAmount.String())
	}

	amount, err := Amount(*coupon, subtotal)
	if err != nil {
		return nil, err
	}
	return &Discount{Coupon: *coupon, Amount: amount}, nil
}

// Available lists active coupons that can still be redeemed by someone.
func (s *Service) Available(ctx context.Context) ([]domain.Coupon, error) {
	now := s.now()
	all, err := s.repo.ListActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}

	out := make([]domain.Coupon, 0, len(all))
	for _, c := range all {
		if Check(c, now) == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// Check validates the coupon's own state at now, ignoring the order and the user.
func Check(c domain.Coupon, now time.Time) error {
	switch {
	case !c.IsActive:
		return ErrInactive
	case now.Before(c.ValidFrom):
		return ErrNotYetValid
	case c.ValidUntil != nil && c.ValidUntil.Before(now):
		return ErrExpired
	case c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit:
		return ErrUsageLimit
	}
	return nil
}

// Amount computes the discount for subtotal. It never exceeds the subtotal.
func Amount(c domain.Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch c.Type {
	case domain.CouponTypePercentage:
		amount = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
		if c.MaximumDiscountAmount != nil && amount.GreaterThan(*c.MaximumDiscountAmount) {
			amount = *c.MaximumDiscountAmount
		}
	case domain.CouponTypeFixedAmount:
		amount = c.Value
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}

	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return amount, nil
}

// IsRuleViolation reports whether err is a coupon rule failure the customer can act on.
func IsRuleViolation(err error) bool {
	for _, target := range []error{ErrNotFound, ErrInactive, ErrNotYetValid, ErrExpired, ErrUsageLimit, ErrAlreadyUsed, ErrBelowMinimum} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
