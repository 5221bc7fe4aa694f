package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/coupons"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/payment"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRefundFailed      = errors.New("refund failed")
	ErrCartUnavailable   = errors.New("cart service unavailable")

	// ErrCheckoutInProgress means the idempotency key belongs to an order that
	// has not finished payment or confirmation yet. Retrying later is safe.
	ErrCheckoutInProgress   = errors.New("checkout for this idempotency key is still in progress")
	// ErrIdempotencyKeyReused means the key was first sent by another user.
	ErrIdempotencyKeyReused = errors.New("idempotency key was already used by another request")

	errPaymentUnverified = errors.New("payment could not be verified")
)

// persistTimeout bounds the writes made once the order exists. They run on a
// context detached from the request's cancellation.
const persistTimeout = 10 * time.Second

const (
	trackingPlaced           = "Order Placed"
	trackingConfirmed        = "Order Confirmed"
	trackingPaymentConfirmed = "Payment Confirmed"
	trackingCancelled        = "Order Cancelled"

	msgPlacedCOD        = "Your COD order has been received. We will call you within 24 hours to confirm."
	msgPlaced           = "Your order has been received and is being processed."
	msgConfirmedCOD     = "Your COD order has been confirmed. Our team will call you within 24 hours."
	msgPaymentConfirmed = "Payment has been successfully processed."
)

// Notifier receives order events. Errors are logged by the caller and never
// undo an order.
type Notifier interface {
	OrderPlaced(ctx context.Context, order domain.Order) error
	StatusChanged(ctx context.Context, order domain.Order, status domain.OrderStatus) error
}

// Carts is the server-side cart the checkout reads from and clears.
type Carts interface {
	Items(ctx context.Context, cartID string) ([]domain.CartItem, error)
	Clear(ctx context.Context, cartID string) error
}

type Coupons interface {
	Apply(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*coupons.Discount, error)
}

type Metrics interface {
	OrderPlaced(ctx context.Context, method domain.PaymentMethod)
	PaymentFailed(ctx context.Context, method domain.PaymentMethod)
	CheckoutRejected(ctx context.Context, reason string)
	StatusUpdated(ctx context.Context, status domain.OrderStatus)
}

// PlaceResult is the outcome of a checkout that got as far as creating an order.
// A declined payment is Success false with Error set; the order is still returned.
type PlaceResult struct {
	Success     bool          `json:"success"`
	Order       *domain.Order `json:"order,omitempty"`
	PaymentID   string        `json:"payment_id,omitempty"`
	RedirectURL string        `json:"redirect_url,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type Service struct {
	repo      Repository
	gateway   payment.Gateway
	notifier  Notifier
	carts     Carts
	coupons   Coupons
	validator *checkout.Validator
	pricing   checkout.Pricing
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithCarts(c Carts) Option {
	return func(s *Service) { s.carts = c }
}

func WithCoupons(c Coupons) Option {
	return func(s *Service) { s.coupons = c }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPricing(p checkout.Pricing) Option {
	return func(s *Service) { s.pricing = p }
}

func NewService(repo Repository, gateway payment.Gateway, notifier Notifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		pricing:  checkout.DefaultPricing(),
		metrics:  nopMetrics{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = checkout.NewValidator(s.pricing)
	return s
}

// PlaceOrder turns a request into an order: validate, create, charge or
// confirm COD, notify, clear the cart. Validation and persistence failures
// are returned as errors; a declined payment is a PlaceResult with Success false.
func (s *Service) PlaceOrder(ctx context.Context, req checkout.Request) (*PlaceResult, error) {
	if req.IdempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
		if existing != nil {
			return s.replay(existing, req)
		}
	}

	if req.CartID != "" {
		if s.carts == nil {
			return nil, ErrCartUnavailable
		}
		items, err := s.carts.Items(ctx, req.CartID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		req.Items = items
	}

	if err := s.validator.Validate(req); err != nil {
		s.metrics.CheckoutRejected(ctx, "validation")
		return nil, err
	}

	subtotal := domain.CartSubtotal(req.Items)

	var usage *domain.CouponUsage
	discount := decimal.Zero
	if req.CouponCode != "" && s.coupons != nil {
		d, err := s.coupons.Apply(ctx, req.CouponCode, req.UserID, subtotal)
		if err != nil {
			if coupons.IsRuleViolation(err) {
				s.metrics.CheckoutRejected(ctx, "coupon")
				return nil, checkout.NewValidationError("coupon_code", err.Error())
			}
			return nil, fmt.Errorf("apply coupon: %w", err)
		}
		discount = d.Amount
		req.CouponCode = d.Coupon.Code
		usage = &domain.CouponUsage{CouponID: d.Coupon.ID, UserID: req.UserID}
	}

	order := s.buildOrder(req, s.pricing.Quote(subtotal, req.PaymentMethod, discount))

	if err := s.repo.Create(ctx, order, usage); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			existing, getErr := s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
			if getErr == nil && existing != nil {
				return s.replay(existing, req)
			}
		}
		if coupons.IsRuleViolation(err) {
			s.metrics.CheckoutRejected(ctx, "coupon")
			return nil, checkout.NewValidationError("coupon_code", err.Error())
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created", "order_id", order.ID, "order_number", order.OrderNumber, "payment_method", order.PaymentMethod)

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	result := &PlaceResult{}
	if req.PaymentMethod.IsCOD() {
		updated, err := s.repo.UpdatePayment(persistCtx, order.ID, PaymentUpdate{
			Status:        domain.OrderStatusConfirmed,
			PaymentStatus: domain.PaymentStatusPending,
		}, domain.OrderTracking{Status: trackingConfirmed, Message: msgConfirmedCOD})
		if err != nil {
			return nil, fmt.Errorf("confirm cod order: %w", err)
		}
		if updated == nil {
			return nil, fmt.Errorf("confirm cod order: %w", ErrOrderNotFound)
		}
		order = updated
	} else {
		res, payErr := s.gateway.ProcessPayment(ctx, payment.Request{
			Amount:   order.TotalAmount,
			Currency: order.Currency,
			Method:   order.PaymentMethod,
			OrderID:  order.ID,
			Customer: payment.Customer{
				Name:  order.ShippingAddress.FullName,
				Email: order.CustomerEmail,
				Phone: order.ShippingAddress.Phone,
			},
		})
		if payErr != nil || !res.Success {
			return s.failPayment(persistCtx, order, res, payErr)
		}

		verified, err := s.gateway.Verify(persistCtx, res.PaymentID, order.ID)
		if err != nil || !verified {
			if err == nil {
				err = errPaymentUnverified
			}
			return s.failPayment(persistCtx, order, payment.Result{}, fmt.Errorf("verify payment %s: %w", res.PaymentID, err))
		}

		updated, err := s.repo.UpdatePayment(persistCtx, order.ID, PaymentUpdate{
			Status:          domain.OrderStatusConfirmed,
			PaymentStatus:   domain.PaymentStatusPaid,
			PaymentIntentID: res.PaymentID,
		}, domain.OrderTracking{Status: trackingPaymentConfirmed, Message: msgPaymentConfirmed})
		if err != nil {
			return nil, fmt.Errorf("record payment: %w", err)
		}
		if updated == nil {
			return nil, fmt.Errorf("record payment: %w", ErrOrderNotFound)
		}
		order = updated
		result.PaymentID = res.PaymentID
		result.RedirectURL = res.RedirectURL
	}

	s.notify(persistCtx, *order)

	if req.CartID != "" {
		if err := s.carts.Clear(persistCtx, req.CartID); err != nil {
			s.logger.Error("failed to clear cart", "error", err, "order_id", order.ID, "cart_id", req.CartID)
		}
	}

	s.metrics.OrderPlaced(ctx, order.PaymentMethod)
	s.logger.Info("order placed", "order_id", order.ID, "status", order.Status, "payment_status", order.PaymentStatus)

	result.Success = true
	result.Order = order
	return result, nil
}

func (s *Service) buildOrder(req checkout.Request, q checkout.Quote) *domain.Order {
	now := s.now().UTC()

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID:    line.ProductID,
			ProductName:  line.Name,
			ProductImage: line.Image,
			Flavor:       line.Flavor,
			Size:         line.Size,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			TotalPrice:   line.LineTotal(),
		})
	}

	placedMsg := msgPlaced
	if req.PaymentMethod.IsCOD() {
		placedMsg = msgPlacedCOD
	}

	return &domain.Order{
		UserID:          req.UserID,
		OrderNumber:     NewOrderNumber(now),
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		Subtotal:        q.Subtotal,
		TaxAmount:       q.Tax,
		ShippingAmount:  q.Shipping,
		CODAmount:       q.COD,
		DiscountAmount:  q.Discount,
		TotalAmount:     q.Total,
		Currency:        checkout.Currency,
		CouponCode:      req.CouponCode,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.Billing(),
		Notes:           req.Notes,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		Items:           items,
		Tracking: []domain.OrderTracking{
			{Status: trackingPlaced, Message: placedMsg, CreatedAt: now},
		},
	}
}

func (s *Service) failPayment(ctx context.Context, order *domain.Order, res payment.Result, payErr error) (*PlaceResult, error) {
	message := res.FailureMessage()
	if payErr != nil {
		message = payment.DefaultFailureMessage
		s.logger.Error("payment gateway error", "error", payErr, "order_id", order.ID)
	} else {
		s.logger.Warn("payment declined", "order_id", order.ID, "reason", message)
	}

	updated, err := s.repo.UpdatePayment(ctx, order.ID, PaymentUpdate{
		Status:        domain.OrderStatusCancelled,
		PaymentStatus: domain.PaymentStatusFailed,
	}, domain.OrderTracking{Status: trackingCancelled, Message: "Payment failed: " + message})
	if err != nil {
		return nil, fmt.Errorf("record failed payment: %w", err)
	}
	if updated != nil {
		order = updated
	}

	s.metrics.PaymentFailed(ctx, order.PaymentMethod)
	return &PlaceResult{Success: false, Order: order, Error: message}, nil
}

func (s *Service) notify(ctx context.Context, order domain.Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.OrderPlaced(ctx, order); err != nil {
		s.logger.Error("failed to send order notifications", "error", err, "order_id", order.ID)
	}
	if !order.PaymentMethod.IsCOD() {
		if err := s.notifier.StatusChanged(ctx, order, domain.OrderStatusConfirmed); err != nil {
			s.logger.Error("failed to send status notification", "error", err, "order_id", order.ID)
		}
	}
}

// replay answers a retried checkout from the order already stored under its
// idempotency key. An order still pending never counts as placed.
func (s *Service) replay(existing *domain.Order, req checkout.Request) (*PlaceResult, error) {
	if existing.UserID != req.UserID {
		s.logger.Warn("idempotency key reused by another user", "order_id", existing.ID, "user_id", req.UserID)
		return nil, ErrIdempotencyKeyReused
	}
	if existing.Status == domain.OrderStatusPending {
		s.logger.Info("checkout still in progress for idempotency key", "order_id", existing.ID)
		return nil, ErrCheckoutInProgress
	}

	s.logger.Info("replaying order for idempotency key", "order_id", existing.ID, "status", existing.Status)
	return resultFor(existing), nil
}

func resultFor(order *domain.Order) *PlaceResult {
	if order.Status == domain.OrderStatusCancelled && order.PaymentStatus == domain.PaymentStatusFailed {
		return &PlaceResult{Success: false, Order: order, Error: payment.DefaultFailureMessage}
	}
	return &PlaceResult{Success: true, Order: order, PaymentID: order.PaymentIntentID}
}

// UpdateStatus moves an order to status if the transition table allows it,
// appends a tracking row and notifies the owner. Refunding a paid order
// refunds the payment first.
func (s *Service) UpdateStatus(ctx context.Context, id, rawStatus string) (*domain.Order, error) {
	status, err := domain.ParseOrderStatus(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, rawStatus)
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, order.Status)
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}

	tracking := domain.OrderTracking{
		Status:  status.Title(),
		Message: fmt.Sprintf("Order status updated to %s.", status),
	}

	var updated *domain.Order
	if status == domain.OrderStatusRefunded && order.PaymentStatus == domain.PaymentStatusPaid {
		res, err := s.gateway.Refund(ctx, order.PaymentIntentID, order.TotalAmount, "order refunded")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
		if !res.Success {
			return nil, fmt.Errorf("%w: %s", ErrRefundFailed, res.Error)
		}
		s.logger.Info("payment refunded", "order_id", order.ID, "refund_id", res.PaymentID)

		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		updated, err = s.repo.UpdatePayment(persistCtx, id, PaymentUpdate{
			Status:        status,
			PaymentStatus: domain.PaymentStatusRefunded,
		}, tracking)
		if err != nil {
			return nil, fmt.Errorf("update order: %w", err)
		}
	} else {
		updated, err = s.repo.UpdateStatus(ctx, id, status, tracking)
		if err != nil {
			return nil, fmt.Errorf("update order: %w", err)
		}
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}

	if s.notifier != nil {
		if err := s.notifier.StatusChanged(ctx, *updated, status); err != nil {
			s.logger.Error("failed to send status notification", "error", err, "order_id", id)
		}
	}

	s.metrics.StatusUpdated(ctx, status)
	s.logger.Info("order status updated", "order_id", id, "from", order.Status, "to", status)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, limit int) ([]domain.Order, error) {
	return s.repo.List(ctx, limit)
}

type nopMetrics struct{}

func (nopMetrics) OrderPlaced(context.Context, domain.PaymentMethod)   {}
func (nopMetrics) PaymentFailed(context.Context, domain.PaymentMethod) {}
func (nopMetrics) CheckoutRejected(context.Context, string)            {}
func (nopMetrics) StatusUpdated(context.Context, domain.OrderStatus)   {}
