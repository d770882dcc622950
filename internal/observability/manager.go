// Package observability owns the OpenTelemetry trace and meter providers
// and the order workflow instruments built on them.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Module exposes the manager and the order instruments to Fx.
var Module = fx.Provide(NewManager, NewOrderMetrics)

// Manager holds the providers. Either may be nil when disabled.
type Manager struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler
	cfg            config.Observability
	logger         *zap.Logger
}

// NewManager builds the providers and installs them globally on start, so
// the package-level tracers of repositories and services pick them up.
func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	obs := cfg.Observability
	mgr := &Manager{cfg: obs, logger: logger.Named("observability")}

	res, err := sdkresource.New(context.Background(),
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(obs.ServiceName),
			semconv.ServiceVersion(obs.ServiceVersion),
			semconv.DeploymentEnvironment(obs.Environment),
			attribute.String("service.domain", "delivery"),
		),
	)
	if err != nil {
		return nil, err
	}

	if obs.EnableTracing {
		if mgr.tracerProvider, err = newTracerProvider(context.Background(), obs, res, mgr.logger); err != nil {
			return nil, err
		}
	}
	if obs.EnableMetrics {
		if mgr.meterProvider, mgr.metricsHandler, err = newMeterProvider(obs, res, mgr.logger); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			mgr.install()
			return nil
		},
		OnStop: mgr.shutdown,
	})
	return mgr, nil
}

func (m *Manager) install() {
	if m.tracerProvider != nil {
		otel.SetTracerProvider(m.tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if m.meterProvider != nil {
		otel.SetMeterProvider(m.meterProvider)
	}
	m.logger.Info("telemetry ready",
		zap.Bool("tracing", m.TracingEnabled()),
		zap.Bool("metrics", m.MetricsEnabled()),
	)
}

func (m *Manager) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if m.tracerProvider != nil {
		errs = append(errs, m.tracerProvider.Shutdown(ctx))
	}
	if m.meterProvider != nil {
		errs = append(errs, m.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (m *Manager) TracingEnabled() bool { return m != nil && m.tracerProvider != nil }

func (m *Manager) MetricsEnabled() bool { return m != nil && m.meterProvider != nil }

// MetricsHandler serves the Prometheus scrape endpoint. It is nil unless the
// prometheus exporter is selected.
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil {
		return nil
	}
	return m.metricsHandler
}

// PrometheusPath is where MetricsHandler is mounted.
func (m *Manager) PrometheusPath() string { return m.cfg.PrometheusPath }
