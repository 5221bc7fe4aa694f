package domain

import "time"

type OrderEventType string

const (
	OrderEventPlaced        OrderEventType = "order.placed"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

type OrderEvent struct {
	Type      OrderEventType `json:"type"`
	Order     Order          `json:"order"`
	Status    OrderStatus    `json:"status,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
