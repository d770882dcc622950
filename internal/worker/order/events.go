// Package order holds the worker handlers for order events.
package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/messaging"
	ordersvc "github.com/NovaByteCorp/deliverypro/internal/service/order"
	"github.com/NovaByteCorp/deliverypro/internal/worker"
)

var workerTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Invalidator drops the cached copy of an order.
type Invalidator interface {
	Invalidate(ctx context.Context, id string)
}

// NewEventHandler registers Handle for every event on the orders topic.
func NewEventHandler(svc *ordersvc.Service, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: Handle(svc, logger),
	}
}

// Handle evicts the order named by each event so this replica stops serving
// a copy written elsewhere.
func Handle(inv Invalidator, logger *zap.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event ordersvc.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Int64("offset", msg.Offset), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return fmt.Errorf("decode order event: %w", err)
		}
		if event.OrderID == "" {
			span.SetStatus(codes.Error, "missing order id")
			return fmt.Errorf("order event at offset %d has no order id", msg.Offset)
		}
		span.SetAttributes(
			attribute.String("order.id", event.OrderID),
			attribute.String("order.event", event.Type),
		)

		inv.Invalidate(ctx, event.OrderID)

		fields := []zap.Field{
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.String("order_number", event.OrderNumber),
			zap.String("to", string(event.To)),
		}
		if event.Action != "" {
			fields = append(fields, zap.String("action", event.Action), zap.String("from", string(event.From)))
		}
		if event.DriverID != nil {
			fields = append(fields, zap.String("driver_id", *event.DriverID))
		}
		logger.Info("order event processed", fields...)
		return nil
	}
}
