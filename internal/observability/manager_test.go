package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
)

func TestNewMeterProvider_Prometheus(t *testing.T) {
	provider, handler, err := newMeterProvider(config.Observability{MetricsExporter: "prometheus"}, sdkresource.Empty(), zap.NewNop())
	if err != nil {
		t.Fatalf("newMeterProvider() error = %v", err)
	}
	defer provider.Shutdown(context.Background())

	mgr := &Manager{meterProvider: provider, metricsHandler: handler}
	metrics, err := NewOrderMetrics(mgr)
	if err != nil {
		t.Fatal(err)
	}
	metrics.Checkout(context.Background(), "ok")

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{"go_goroutines", "orders_checkouts"} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output lacks %s", want)
		}
	}
}

func TestExportersDisabled(t *testing.T) {
	mp, handler, err := newMeterProvider(config.Observability{MetricsExporter: "none"}, sdkresource.Empty(), zap.NewNop())
	if err != nil || mp != nil || handler != nil {
		t.Fatalf("metrics none = %v, %v, %v", mp, handler, err)
	}
	tp, err := newTracerProvider(context.Background(), config.Observability{TraceExporter: "zipkin"}, sdkresource.Empty(), zap.NewNop())
	if err != nil || tp != nil {
		t.Fatalf("unknown trace exporter = %v, %v", tp, err)
	}
	if _, err := newTracerProvider(context.Background(), config.Observability{TraceExporter: "otlp"}, sdkresource.Empty(), zap.NewNop()); err == nil {
		t.Fatal("otlp without endpoint should fail")
	}

	var mgr *Manager
	if mgr.TracingEnabled() || mgr.MetricsEnabled() || mgr.MetricsHandler() != nil {
		t.Fatal("nil manager reports telemetry")
	}
}
