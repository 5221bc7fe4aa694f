package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrUnknownEvent = errors.New("unknown order event type")

// Notifications is implemented by notification.Service.
type Notifications interface {
	OrderPlaced(ctx context.Context, order domain.Order) error
	StatusChanged(ctx context.Context, order domain.Order, status domain.OrderStatus) error
}

// NotificationHandler turns order events from the broker into notification
// rows and emails.
type NotificationHandler struct {
	notifications Notifications
	logger        *slog.Logger
}

func NewNotificationHandler(notifications Notifications, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}

	logger := h.logger.With("event_type", event.Type, "order_id", event.Order.ID)
	logger.Info("processing order event")

	switch event.Type {
	case domain.OrderEventPlaced:
		if err := h.notifications.OrderPlaced(ctx, event.Order); err != nil {
			logger.Error("failed to record order placed notifications", "error", err)
			return fmt.Errorf("order placed notifications: %w", err)
		}

	case domain.OrderEventStatusChanged:
		status := event.Status
		if status == "" {
			status = event.Order.Status
		}
		if !status.Valid() {
			return fmt.Errorf("status changed event: %w", domain.ErrUnknownOrderStatus)
		}
		if err := h.notifications.StatusChanged(ctx, event.Order, status); err != nil {
			logger.Error("failed to record status notification", "error", err, "status", status)
			return fmt.Errorf("status changed notification: %w", err)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Type)
	}

	logger.Info("order event processed")
	return nil
}
