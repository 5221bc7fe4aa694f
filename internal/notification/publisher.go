package notification

import (
	"context"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const Topic = "order.events"

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// EventPublisher hands order events to the broker instead of writing
// notifications inline. The worker consumes them and calls Service.
type EventPublisher struct {
	publisher Publisher
	now       func() time.Time
}

func NewEventPublisher(publisher Publisher) *EventPublisher {
	return &EventPublisher{publisher: publisher, now: time.Now}
}

func (p *EventPublisher) OrderPlaced(ctx context.Context, order domain.Order) error {
	return p.publisher.Publish(ctx, order.ID, domain.OrderEvent{
		Type:      domain.OrderEventPlaced,
		Order:     order,
		Timestamp: p.now().UTC(),
	})
}

func (p *EventPublisher) StatusChanged(ctx context.Context, order domain.Order, status domain.OrderStatus) error {
	return p.publisher.Publish(ctx, order.ID, domain.OrderEvent{
		Type:      domain.OrderEventStatusChanged,
		Order:     order,
		Status:    status,
		Timestamp: p.now().UTC(),
	})
}
