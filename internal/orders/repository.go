package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/coupons"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// ErrDuplicateIdempotencyKey is returned by Create when another order already
// holds the same idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

type Repository interface {
	Create(ctx context.Context, order *domain.Order, usage *domain.CouponUsage) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, tracking domain.OrderTracking) (*domain.Order, error)
	UpdatePayment(ctx context.Context, id string, update PaymentUpdate, tracking domain.OrderTracking) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context, limit int) ([]domain.Order, error)
}

// PaymentUpdate moves status and payment status together. An empty
// PaymentIntentID keeps the stored one.
type PaymentUpdate struct {
	Status          domain.OrderStatus
	PaymentStatus   domain.PaymentStatus
	PaymentIntentID string
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const (
	uniqueViolation = "23505"

	idempotencyKeyConstraint = "orders_idempotency_key_key"
	couponUsageConstraint    = "coupon_usage_coupon_id_user_id_key"
)

// Create writes the order, its items, its initial tracking rows and the
// coupon usage in one transaction. A coupon that ran out or that the user
// already redeemed fails the whole write with coupons.ErrUsageLimit or
// coupons.ErrAlreadyUsed.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order, usage *domain.CouponUsage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, order_number, status, payment_status, payment_method, payment_intent_id,
			subtotal, tax_amount, shipping_amount, cod_amount, discount_amount, total_amount,
			currency, coupon_code, customer_email, shipping_address, billing_address, notes,
			idempotency_key, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NULLIF($20, ''), $21, $21)
	`, order.ID, order.UserID, order.OrderNumber, order.Status, order.PaymentStatus, order.PaymentMethod, order.PaymentIntentID,
		order.Subtotal, order.TaxAmount, order.ShippingAmount, order.CODAmount, order.DiscountAmount, order.TotalAmount,
		order.Currency, order.CouponCode, order.CustomerEmail, order.ShippingAddress, order.BillingAddress, order.Notes,
		order.IdempotencyKey, order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == idempotencyKeyConstraint {
			return ErrDuplicateIdempotencyKey
		}
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		item.OrderID = order.ID
		item.CreatedAt = order.CreatedAt
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, product_image, flavor, size, quantity, unit_price, total_price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.ProductImage, item.Flavor, item.Size,
			item.Quantity, item.UnitPrice, item.TotalPrice, item.CreatedAt)
		if err != nil {
			return err
		}
	}

	for i := range order.Tracking {
		if err := insertTracking(ctx, tx, order.ID, &order.Tracking[i]); err != nil {
			return err
		}
	}

	if usage != nil {
		usage.OrderID = order.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO coupon_usage (id, coupon_id, user_id, order_id, used_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), usage.CouponID, usage.UserID, usage.OrderID, order.CreatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == couponUsageConstraint {
				return coupons.ErrAlreadyUsed
			}
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE coupons SET used_count = used_count + 1
			WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
		`, usage.CouponID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return coupons.ErrUsageLimit
		}
	}

	return tx.Commit()
}

func insertTracking(ctx context.Context, tx *sql.Tx, orderID string, t *domain.OrderTracking) error {
	t.ID = uuid.New().String()
	t.OrderID = orderID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_tracking (id, order_id, status, message, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.OrderID, t.Status, t.Message, t.Location, t.CreatedAt)
	return err
}

const orderColumns = `
	id, user_id, order_number, status, payment_status, payment_method, payment_intent_id,
	subtotal, tax_amount, shipping_amount, cod_amount, discount_amount, total_amount,
	currency, coupon_code, customer_email, shipping_address, billing_address, notes,
	COALESCE(idempotency_key, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PaymentIntentID,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.CODAmount, &o.DiscountAmount, &o.TotalAmount,
		&o.Currency, &o.CouponCode, &o.CustomerEmail, &o.ShippingAddress, &o.BillingAddress, &o.Notes,
		&o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	orders := []*domain.Order{order}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	if err := r.loadTracking(ctx, orders); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, tracking domain.OrderTracking) (*domain.Order, error) {
	return r.update(ctx, id, tracking, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, status)
}

func (r *OrderRepository) UpdatePayment(ctx context.Context, id string, update PaymentUpdate, tracking domain.OrderTracking) (*domain.Order, error) {
	return r.update(ctx, id, tracking, `
		UPDATE orders
		SET status = $2, payment_status = $3,
			payment_intent_id = COALESCE(NULLIF($4, ''), payment_intent_id),
			updated_at = NOW()
		WHERE id = $1
	`, id, update.Status, update.PaymentStatus, update.PaymentIntentID)
}

// update runs query and appends tracking in one transaction, then reloads the order.
func (r *OrderRepository) update(ctx context.Context, id string, tracking domain.OrderTracking, query string, args ...any) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	if err := insertTracking(ctx, tx, id, &tracking); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

func (r *OrderRepository) List(ctx context.Context, limit int) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ptrs []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ptrs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	if err := r.loadTracking(ctx, ptrs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(ptrs))
	for _, o := range ptrs {
		orders = append(orders, *o)
	}

	return orders, nil
}

// loadItems fills Items for every order with a single query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []*domain.Order) error {
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_image, flavor, size, quantity, unit_price, total_price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductImage,
			&item.Flavor, &item.Size, &item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.CreatedAt); err != nil {
			return err
		}
		order := byID[item.OrderID]
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

// loadTracking fills Tracking for every order, oldest row first.
func (r *OrderRepository) loadTracking(ctx context.Context, orders []*domain.Order) error {
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Tracking = []domain.OrderTracking{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, status, message, location, created_at
		FROM order_tracking
		WHERE order_id = ANY($1)
		ORDER BY created_at, seq
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var t domain.OrderTracking
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Status, &t.Message, &t.Location, &t.CreatedAt); err != nil {
			return err
		}
		order := byID[t.OrderID]
		order.Tracking = append(order.Tracking, t)
	}

	return rows.Err()
}
