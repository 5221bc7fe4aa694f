package coupons

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	c, _ := args.Get(0).(*domain.Coupon)
	return c, args.Error(1)
}

func (m *mockRepository) HasUsage(ctx context.Context, couponID, userID string) (bool, error) {
	args := m.Called(ctx, couponID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) ListActive(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	args := m.Called(ctx, now)
	c, _ := args.Get(0).([]domain.Coupon)
	return c, args.Error(1)
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func percentCoupon() *domain.Coupon {
	maxDisc := dec("150")
	return &domain.Coupon{
		ID:                    "c-1",
		Code:                  "SAVE10",
		Type:                  domain.CouponTypePercentage,
		Value:                 dec("10"),
		MinimumOrderAmount:    dec("500"),
		MaximumDiscountAmount: &maxDisc,
		IsActive:              true,
		ValidFrom:             fixedNow.Add(-24 * time.Hour),
	}
}

func newService(repo Repository) *Service {
	s := NewService(repo)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestService_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("percentage discount", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByCode", ctx, "SAVE10").Return(percentCoupon(), nil)
		repo.On("HasUsage", ctx, "c-1", "u-1").Return(false, nil)

		d, err := newService(repo).Apply(ctx, " save10 ", "u-1", dec("800"))
		require.NoError(t, err)
		assert.True(t, d.Amount.Equal(dec("80")))
		repo.AssertExpectations(t)
	})

	t.Run("percentage capped by maximum", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByCode", ctx, "SAVE10").Return(percentCoupon(), nil)
		repo.On("HasUsage", ctx, "c-1", "u-1").Return(false, nil)

		d, err := newService(repo).Apply(ctx, "SAVE10", "u-1", dec("5000"))
		require.NoError(t, err)
		assert.True(t, d.Amount.Equal(dec("150")))
	})

	t.Run("unknown code", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByCode", ctx, "NOPE").Return(nil, nil)

		_, err := newService(repo).Apply(ctx, "nope", "u-1", dec("800"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already used by this user", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByCode", ctx, "SAVE10").Return(percentCoupon(), nil)
		repo.On("HasUsage", ctx, "c-1", "u-1").Return(true, nil)

		_, err := newService(repo).Apply(ctx, "SAVE10", "u-1", dec("800"))
		assert.ErrorIs(t, err, ErrAlreadyUsed)
	})

	t.Run("below minimum", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByCode", ctx, "SAVE10").Return(percentCoupon(), nil)
		repo.On("HasUsage", ctx, "c-1", "u-1").Return(false, nil)

		_, err := newService(repo).Apply(ctx, "SAVE10", "u-1", dec("499"))
		assert.ErrorIs(t, err, ErrBelowMinimum)
		assert.Contains(t, err.Error(), "₹500")
		assert.True(t, IsRuleViolation(err))
	})

	t.Run("repository failure is not a rule violation", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByCode", ctx, "SAVE10").Return(nil, errors.New("connection reset"))

		_, err := newService(repo).Apply(ctx, "SAVE10", "u-1", dec("800"))
		require.Error(t, err)
		assert.False(t, IsRuleViolation(err))
	})
}

func TestCheck(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)
	limit := 5

	tests := []struct {
		name string
		mut  func(c *domain.Coupon)
		want error
	}{
		{"valid", func(c *domain.Coupon) {}, nil},
		{"inactive", func(c *domain.Coupon) { c.IsActive = false }, ErrInactive},
		{"not started", func(c *domain.Coupon) { c.ValidFrom = future }, ErrNotYetValid},
		{"expired", func(c *domain.Coupon) { c.ValidUntil = &past }, ErrExpired},
		{"limit reached", func(c *domain.Coupon) { c.UsageLimit = &limit; c.UsedCount = 5 }, ErrUsageLimit},
		{"under limit", func(c *domain.Coupon) { c.UsageLimit = &limit; c.UsedCount = 4 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := percentCoupon()
			tt.mut(c)
			err := Check(*c, fixedNow)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAmount(t *testing.T) {
	t.Run("fixed amount never exceeds subtotal", func(t *testing.T) {
		c := domain.Coupon{Type: domain.CouponTypeFixedAmount, Value: dec("300")}
		amount, err := Amount(c, dec("250"))
		require.NoError(t, err)
		assert.True(t, amount.Equal(dec("250")))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Amount(domain.Coupon{Type: "bogo"}, dec("250"))
		assert.ErrorIs(t, err, ErrUnknownType)
	})
}

func TestHandler_Preview(t *testing.T) {
	repo := &mockRepository{}
	repo.On("GetByCode", mock.Anything, "SAVE10").Return(percentCoupon(), nil)
	repo.On("HasUsage", mock.Anything, "c-1", "u-1").Return(false, nil)
	repo.On("GetByCode", mock.Anything, "NOPE").Return(nil, nil)

	h := NewHandler(newService(repo), slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /coupons/{code}", h.HandlePreview)

	t.Run("ok", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/coupons/SAVE10?user_id=u-1&subtotal=800", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"code":"SAVE10","discount":"80"}`, rec.Body.String())
	})

	t.Run("rule violation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/coupons/NOPE?user_id=u-1&subtotal=800", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("bad subtotal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/coupons/SAVE10?subtotal=abc", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
