package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/NovaByteCorp/deliverypro"

// Meter returns a meter from the configured provider, or a noop meter when
// metrics are disabled.
func (m *Manager) Meter() metric.Meter {
	if m == nil || m.meterProvider == nil {
		return noop.NewMeterProvider().Meter(meterName)
	}
	return m.meterProvider.Meter(meterName)
}

// OrderMetrics records order workflow counters. A nil *OrderMetrics is a
// valid no-op recorder.
type OrderMetrics struct {
	transitions    metric.Int64Counter
	claimConflicts metric.Int64Counter
	checkouts      metric.Int64Counter
	compensations  metric.Int64Counter
}

// NewOrderMetrics registers the order instruments on the manager's meter.
func NewOrderMetrics(m *Manager) (*OrderMetrics, error) {
	meter := m.Meter()

	transitions, err := meter.Int64Counter("orders.transitions",
		metric.WithDescription("Order status transitions by action and result"))
	if err != nil {
		return nil, err
	}
	claimConflicts, err := meter.Int64Counter("orders.claim_conflicts",
		metric.WithDescription("Driver claims lost to a concurrent claim"))
	if err != nil {
		return nil, err
	}
	checkouts, err := meter.Int64Counter("orders.checkouts",
		metric.WithDescription("Checkout attempts by result"))
	if err != nil {
		return nil, err
	}
	compensations, err := meter.Int64Counter("orders.compensations",
		metric.WithDescription("Checkout compensations by result"))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{
		transitions:    transitions,
		claimConflicts: claimConflicts,
		checkouts:      checkouts,
		compensations:  compensations,
	}, nil
}

// Transition counts one transition attempt.
func (o *OrderMetrics) Transition(ctx context.Context, action, result string) {
	if o == nil {
		return
	}
	o.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("result", result),
	))
}

// ClaimConflict counts a lost claim race.
func (o *OrderMetrics) ClaimConflict(ctx context.Context) {
	if o == nil {
		return
	}
	o.claimConflicts.Add(ctx, 1)
}

// Checkout counts one checkout attempt.
func (o *OrderMetrics) Checkout(ctx context.Context, result string) {
	if o == nil {
		return
	}
	o.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Compensation counts a rollback run, failed or not.
func (o *OrderMetrics) Compensation(ctx context.Context, ok bool) {
	if o == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	o.compensations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
