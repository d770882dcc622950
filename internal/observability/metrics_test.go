package observability

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestOrderMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mgr := &Manager{meterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))}

	m, err := NewOrderMetrics(mgr)
	if err != nil {
		t.Fatalf("NewOrderMetrics() error = %v", err)
	}
	ctx := context.Background()
	m.Transition(ctx, "accept", "applied")
	m.Transition(ctx, "accept", "condition_failed")
	m.ClaimConflict(ctx)
	m.Checkout(ctx, "ok")
	m.Compensation(ctx, false)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
		}
	}
	for _, want := range []string{"orders.transitions", "orders.claim_conflicts", "orders.checkouts", "orders.compensations"} {
		if !names[want] {
			t.Errorf("metric %s not collected", want)
		}
	}
}

func TestOrderMetrics_NilAndDisabled(t *testing.T) {
	var m *OrderMetrics
	m.Transition(context.Background(), "confirm", "applied")
	m.ClaimConflict(context.Background())

	disabled, err := NewOrderMetrics(&Manager{})
	if err != nil {
		t.Fatalf("NewOrderMetrics(disabled) error = %v", err)
	}
	disabled.Checkout(context.Background(), "ok")
}
