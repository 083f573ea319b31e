package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestTelemetrySetup(t *testing.T) {
	tel, err := Setup(Options{ServiceName: "test-service"})
	if err != nil {
		t.Fatalf("Failed to setup telemetry: %v", err)
	}

	if otel.GetTracerProvider() == nil {
		t.Error("Tracer provider not set")
	}
	if otel.GetMeterProvider() == nil {
		t.Error("Meter provider not set")
	}

	if GetTracer("test-tracer") == nil {
		t.Error("Failed to get tracer")
	}
	if GetMeter("test-meter") == nil {
		t.Error("Failed to get meter")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestMetricsHolder_GaugeState(t *testing.T) {
	m := GetGlobalMetrics()

	m.SetOpenPositions("BTC/USD", 2)
	m.SetBalance("paper", 10000)
	m.SetCircuitBreakerOpen("test", true)

	if got := m.GetOpenPositions()["BTC/USD"]; got != 2 {
		t.Errorf("open positions = %d, want 2", got)
	}
	if got := m.GetBalances()["paper"]; got != 10000 {
		t.Errorf("balance = %v, want 10000", got)
	}
	if !m.IsCircuitBreakerOpen("test") {
		t.Error("circuit breaker gauge not set")
	}

	// instruments are usable before Setup
	m.TradesClosedTotal.Add(context.Background(), 1)
}
