package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("CACHE_ENABLED", "false")
}

func TestNew_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if !cfg.Orders.DeliveryFee.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("DeliveryFee = %s, want 2.50", cfg.Orders.DeliveryFee)
	}
	if !cfg.Orders.TaxRate.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("TaxRate = %s, want 0.10", cfg.Orders.TaxRate)
	}
	if cfg.Orders.CancellationTimeLimit != 0 {
		t.Errorf("CancellationTimeLimit = %s, want disabled", cfg.Orders.CancellationTimeLimit)
	}
	if cfg.Orders.RequireActiveRestaurant {
		t.Error("RequireActiveRestaurant should default to false")
	}
	if cfg.Client.PollInterval != 15*time.Second {
		t.Errorf("Client.PollInterval = %s, want 15s", cfg.Client.PollInterval)
	}
	if cfg.Cache.Driver != "noop" {
		t.Errorf("Cache.Driver = %s, want noop when cache disabled", cfg.Cache.Driver)
	}
	if cfg.Messaging.Driver != "noop" {
		t.Errorf("Messaging.Driver = %s, want noop when messaging disabled", cfg.Messaging.Driver)
	}
	if cfg.Database.ReaderDSN != cfg.Database.WriterDSN {
		t.Error("ReaderDSN should fall back to WriterDSN")
	}
}

func TestNew_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ORDER_DELIVERY_FEE", "3.75")
	t.Setenv("ORDER_CANCELLATION_TIME_LIMIT", "10m")
	t.Setenv("CHECKOUT_REQUIRE_ACTIVE_RESTAURANT", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if cfg.HTTP.Port != 9000 {
		t.Errorf("HTTP.Port = %d, want 9000", cfg.HTTP.Port)
	}
	if !cfg.Orders.DeliveryFee.Equal(decimal.RequireFromString("3.75")) {
		t.Errorf("DeliveryFee = %s, want 3.75", cfg.Orders.DeliveryFee)
	}
	if cfg.Orders.CancellationTimeLimit != 10*time.Minute {
		t.Errorf("CancellationTimeLimit = %s, want 10m", cfg.Orders.CancellationTimeLimit)
	}
	if !cfg.Orders.RequireActiveRestaurant {
		t.Error("RequireActiveRestaurant should be true")
	}
	if len(cfg.Messaging.Kafka.Brokers) != 2 || cfg.Messaging.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Brokers = %v", cfg.Messaging.Kafka.Brokers)
	}
	if cfg.Observability.PrometheusPath != "/prom" {
		t.Errorf("PrometheusPath = %s, want /prom", cfg.Observability.PrometheusPath)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{"AUTH_JWT_SECRET": ""}},
		{name: "invalid port", env: map[string]string{"HTTP_PORT": "0"}},
		{name: "negative fee", env: map[string]string{"ORDER_DELIVERY_FEE": "-1"}},
		{name: "unknown cache driver", env: map[string]string{"CACHE_ENABLED": "true", "CACHE_DRIVER": "memcached"}},
		{name: "cloudinary without credentials", env: map[string]string{"UPLOAD_DRIVER": "cloudinary"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := New(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNew_ReportsEveryProblem(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("HTTP_PORT", "-1")
	t.Setenv("OBS_TRACE_SAMPLE_RATIO", "1.5")

	_, err := New()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"AUTH_JWT_SECRET", "HTTP port", "OBS_TRACE_SAMPLE_RATIO"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestNewClient(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://api.test")
	t.Setenv("DRIVER_POLL_INTERVAL", "0s")

	c := NewClient()
	if c.BaseURL != "http://api.test" {
		t.Errorf("BaseURL = %s", c.BaseURL)
	}
	if c.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %s, want fallback 15s", c.PollInterval)
	}
}
