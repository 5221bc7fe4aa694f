package coupons

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CouponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

const couponColumns = `
	id, code, type, value, minimum_order_amount, maximum_discount_amount,
	usage_limit, used_count, is_active, valid_from, valid_until`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*domain.Coupon, error) {
	var (
		c          domain.Coupon
		maxDisc    decimal.NullDecimal
		limit      sql.NullInt64
		validUntil sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Code, &c.Type, &c.Value, &c.MinimumOrderAmount, &maxDisc,
		&limit, &c.UsedCount, &c.IsActive, &c.ValidFrom, &validUntil); err != nil {
		return nil, err
	}
	if maxDisc.Valid {
		c.MaximumDiscountAmount = &maxDisc.Decimal
	}
	if limit.Valid {
		n := int(limit.Int64)
		c.UsageLimit = &n
	}
	if validUntil.Valid {
		c.ValidUntil = &validUntil.Time
	}
	return &c, nil
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+couponColumns+`
		FROM coupons
		WHERE UPPER(code) = UPPER($1)
	`, code)

	c, err := scanCoupon(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CouponRepository) HasUsage(ctx context.Context, couponID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM coupon_usage WHERE coupon_id = $1 AND user_id = $2)
	`, couponID, userID).Scan(&exists)
	return exists, err
}

func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+couponColumns+`
		FROM coupons
		WHERE is_active AND valid_from <= $1 AND (valid_until IS NULL OR valid_until >= $1)
		ORDER BY code
	`, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
