package order

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/messaging"
)

// Event types carried by OrderEvent.
const (
	EventCreated      = "order.created"
	EventTransitioned = "order.transitioned"
)

// OrderEvent is published on the bus after an order is written.
type OrderEvent struct {
	Type         string             `json:"type"`
	OrderID      string             `json:"order_id"`
	OrderNumber  string             `json:"order_number"`
	RestaurantID string             `json:"restaurant_id"`
	CustomerID   string             `json:"customer_id"`
	DriverID     *string            `json:"driver_id,omitempty"`
	Action       string             `json:"action,omitempty"`
	From         entity.OrderStatus `json:"from,omitempty"`
	To           entity.OrderStatus `json:"to"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// NewEvent describes order after a write.
func NewEvent(typ string, order *entity.Order, action string, from entity.OrderStatus) OrderEvent {
	return OrderEvent{
		Type:         typ,
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		RestaurantID: order.RestaurantID,
		CustomerID:   order.CustomerID,
		DriverID:     order.DriverID,
		Action:       action,
		From:         from,
		To:           order.Status,
		OccurredAt:   order.UpdatedDate,
	}
}

// Publisher emits order events. Failures are logged, never returned: the
// write already happened.
type Publisher struct {
	client  messaging.Client
	enabled bool
	logger  *zap.Logger
}

// NewPublisher wraps a messaging client.
func NewPublisher(client messaging.Client, enabled bool, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, enabled: enabled, logger: logger}
}

// Publish sends event keyed by order id so one order's events stay ordered.
func (p *Publisher) Publish(ctx context.Context, event OrderEvent) {
	if p == nil || !p.enabled || p.client == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal order event", zap.Error(err))
		return
	}
	headers := map[string]string{messaging.HeaderEventType: event.Type}
	if err := p.client.Publish(ctx, []byte("order-"+event.OrderID), payload, headers); err != nil {
		p.logger.Error("publish order event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
