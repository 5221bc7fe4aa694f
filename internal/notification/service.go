package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	CreateAdmin(ctx context.Context, n *domain.AdminNotification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
}

// Mailer delivers a rendered email. Implementations need not guarantee delivery.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

var statusMessages = map[domain.OrderStatus]string{
	domain.OrderStatusConfirmed:      "Your order has been confirmed and is being prepared.",
	domain.OrderStatusProcessing:     "Your order is being processed and will ship soon.",
	domain.OrderStatusShipped:        "Your order has been shipped and is on its way!",
	domain.OrderStatusOutForDelivery: "Your order is out for delivery and will reach you today.",
	domain.OrderStatusDelivered:      "Your order has been delivered successfully!",
	domain.OrderStatusCancelled:      "Your order has been cancelled.",
	domain.OrderStatusRefunded:       "Your order has been refunded.",
}

func StatusMessage(status domain.OrderStatus) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("Your order status has been updated to %s.", status)
}

// Service records user and admin notifications for order events and mails them.
// Rows are the source of truth; mail failures are only logged.
type Service struct {
	repo       Repository
	mailer     Mailer
	adminEmail string
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, mailer Mailer, adminEmail string, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		mailer:     mailer,
		adminEmail: adminEmail,
		logger:     logger,
		now:        time.Now,
	}
}

type orderData struct {
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      domain.OrderStatus `json:"status,omitempty"`
	Order       *domain.Order      `json:"order,omitempty"`
}

type adminData struct {
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone"`
	CustomerEmail string               `json:"customer_email,omitempty"`
	TotalAmount   string               `json:"total_amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	IsCOD         bool                 `json:"is_cod"`
	AdminEmail    string               `json:"admin_email,omitempty"`
	Order         *domain.Order        `json:"order"`
}

// OrderPlaced writes the customer confirmation and the admin alert. Both are
// attempted even if the first fails; the returned error joins every failure.
func (s *Service) OrderPlaced(ctx context.Context, order domain.Order) error {
	var errs []error

	if err := s.confirmToCustomer(ctx, order); err != nil {
		errs = append(errs, fmt.Errorf("customer confirmation: %w", err))
	}
	if err := s.alertAdmin(ctx, order); err != nil {
		errs = append(errs, fmt.Errorf("admin alert: %w", err))
	}

	return errors.Join(errs...)
}

// StatusChanged writes an order_<status> notification for the order's owner.
func (s *Service) StatusChanged(ctx context.Context, order domain.Order, status domain.OrderStatus) error {
	data, err := json.Marshal(orderData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      status,
		Order:       &order,
	})
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}

	message := StatusMessage(status)
	n := &domain.Notification{
		UserID:    order.UserID,
		Type:      domain.StatusNotificationType(status),
		Title:     "Order " + status.Title(),
		Message:   fmt.Sprintf("Order #%s: %s", order.OrderNumber, message),
		Data:      data,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create status notification: %w", err)
	}

	if order.CustomerEmail != "" {
		subject, body := renderStatusUpdate(order, status, message)
		s.mail(ctx, order.CustomerEmail, subject, body, order.ID)
	}

	s.logger.Info("status notification recorded", "order_id", order.ID, "status", status)
	return nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *Service) confirmToCustomer(ctx context.Context, order domain.Order) error {
	data, err := json.Marshal(orderData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Order:       &order,
	})
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}

	n := &domain.Notification{
		UserID:    order.UserID,
		Type:      domain.NotificationOrderConfirmed,
		Title:     "Order Confirmed",
		Message:   fmt.Sprintf("Your order #%s has been confirmed.", order.OrderNumber),
		Data:      data,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	if order.CustomerEmail != "" {
		subject, body := renderConfirmation(order)
		s.mail(ctx, order.CustomerEmail, subject, body, order.ID)
	}
	return nil
}

func (s *Service) alertAdmin(ctx context.Context, order domain.Order) error {
	isCOD := order.PaymentMethod.IsCOD()
	data, err := json.Marshal(adminData{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.ShippingAddress.FullName,
		CustomerPhone: order.ShippingAddress.Phone,
		CustomerEmail: order.CustomerEmail,
		TotalAmount:   order.TotalAmount.StringFixed(2),
		PaymentMethod: order.PaymentMethod,
		IsCOD:         isCOD,
		AdminEmail:    s.adminEmail,
		Order:         &order,
	})
	if err != nil {
		return fmt.Errorf("marshal admin notification data: %w", err)
	}

	title := "New Order"
	if isCOD {
		title = "New COD Order"
	}

	n := &domain.AdminNotification{
		Type:      domain.NotificationNewOrder,
		Title:     title,
		Message:   fmt.Sprintf("Order #%s received from %s", order.OrderNumber, order.ShippingAddress.FullName),
		Data:      data,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateAdmin(ctx, n); err != nil {
		return err
	}

	if s.adminEmail != "" {
		subject, body := renderAdminAlert(order)
		s.mail(ctx, s.adminEmail, subject, body, order.ID)
	}
	return nil
}

func (s *Service) mail(ctx context.Context, to, subject, body, orderID string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		s.logger.Error("failed to send email", "error", err, "order_id", orderID, "subject", subject)
	}
}
