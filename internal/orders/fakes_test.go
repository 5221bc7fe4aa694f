package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/coupons"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/payment"
)

type memRepo struct {
	mu          sync.Mutex
	orders      map[string]*domain.Order
	byKey       map[string]string
	usages      []domain.CouponUsage
	seq         int
	failCreate  error
	failUpdate  error
	// honorCtx makes writes fail on a done context, like a real transaction.
	honorCtx    bool
	// missLookups hides stored keys from that many lookups, as if a
	// concurrent request created the order in between.
	missLookups int
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders: make(map[string]*domain.Order),
		byKey:  make(map[string]string),
	}
}

// seed stores o as if an earlier request had created it.
func (m *memRepo) seed(o domain.Order) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	o.ID = fmt.Sprintf("order-%d", m.seq)
	m.orders[o.ID] = cloneOrder(&o)
	if o.IdempotencyKey != "" {
		m.byKey[o.IdempotencyKey] = o.ID
	}
	return cloneOrder(&o)
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	c.Tracking = append([]domain.OrderTracking(nil), o.Tracking...)
	return &c
}

func (m *memRepo) Create(_ context.Context, order *domain.Order, usage *domain.CouponUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCreate != nil {
		return m.failCreate
	}
	if order.IdempotencyKey != "" {
		if _, ok := m.byKey[order.IdempotencyKey]; ok {
			return ErrDuplicateIdempotencyKey
		}
	}

	m.seq++
	order.ID = fmt.Sprintf("order-%d", m.seq)
	for i := range order.Items {
		order.Items[i].ID = fmt.Sprintf("%s-item-%d", order.ID, i)
		order.Items[i].OrderID = order.ID
	}
	for i := range order.Tracking {
		order.Tracking[i].OrderID = order.ID
	}

	m.orders[order.ID] = cloneOrder(order)
	if order.IdempotencyKey != "" {
		m.byKey[order.IdempotencyKey] = order.ID
	}
	if usage != nil {
		usage.OrderID = order.ID
		m.usages = append(m.usages, *usage)
	}
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (m *memRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	m.mu.Lock()
	id, ok := m.byKey[key]
	if m.missLookups > 0 {
		m.missLookups--
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return m.GetByID(ctx, id)
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, tracking domain.OrderTracking) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	o.Status = status
	tracking.OrderID = id
	o.Tracking = append(o.Tracking, tracking)
	return cloneOrder(o), nil
}

func (m *memRepo) UpdatePayment(ctx context.Context, id string, update PaymentUpdate, tracking domain.OrderTracking) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	if m.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	o.Status = update.Status
	o.PaymentStatus = update.PaymentStatus
	if update.PaymentIntentID != "" {
		o.PaymentIntentID = update.PaymentIntentID
	}
	tracking.OrderID = id
	o.Tracking = append(o.Tracking, tracking)
	return cloneOrder(o), nil
}

func (m *memRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) List(_ context.Context, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Order{}
	for _, o := range m.orders {
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type stubGateway struct {
	result       payment.Result
	err          error
	refundResult payment.Result
	refundErr    error
	unverified   bool
	calls        int
	refunds      int
	verifies     int
	lastRequest  payment.Request
	// during runs inside ProcessPayment, before the result is returned.
	during       func()
}

func (g *stubGateway) ProcessPayment(_ context.Context, req payment.Request) (payment.Result, error) {
	g.calls++
	g.lastRequest = req
	if g.during != nil {
		g.during()
	}
	return g.result, g.err
}

func (g *stubGateway) Refund(_ context.Context, _ string, _ decimal.Decimal, _ string) (payment.Result, error) {
	g.refunds++
	return g.refundResult, g.refundErr
}

func (g *stubGateway) Verify(ctx context.Context, _ string, _ string) (bool, error) {
	g.verifies++
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !g.unverified, nil
}

type statusCall struct {
	orderID string
	status  domain.OrderStatus
}

type recordingNotifier struct {
	mu       sync.Mutex
	placed   []string
	statuses []statusCall
	err      error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, order domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, order.ID)
	return n.err
}

func (n *recordingNotifier) StatusChanged(_ context.Context, order domain.Order, status domain.OrderStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, statusCall{order.ID, status})
	return n.err
}

type stubCoupons struct {
	discount *coupons.Discount
	err      error
}

func (c *stubCoupons) Apply(context.Context, string, string, decimal.Decimal) (*coupons.Discount, error) {
	return c.discount, c.err
}

var errBoom = errors.New("boom")

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
