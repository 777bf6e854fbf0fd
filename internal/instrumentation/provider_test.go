package instrumentation

import (
	"context"
	"testing"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if provider.Enabled() {
		t.Error("Enabled() = true for a disabled provider")
	}
	if provider.Metrics() == nil {
		t.Error("Metrics() = nil, want a no-op recorder")
	}
	if provider.PrometheusHandler() != nil {
		t.Error("PrometheusHandler() != nil for a disabled provider")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_Prometheus(t *testing.T) {
	provider := newTestProvider(t)

	if !provider.Enabled() {
		t.Error("Enabled() = false")
	}
	if provider.PrometheusHandler() == nil {
		t.Error("PrometheusHandler() = nil with the prometheus exporter")
	}
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		ServiceName:     "test",
		Enabled:         true,
		MetricsExporter: "statsd",
	})
	if err == nil {
		t.Error("NewProvider() error = nil for an unsupported exporter")
	}
}

func TestNewProvider_OTLPWithoutEndpoint(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		ServiceName:     "test",
		Enabled:         true,
		MetricsExporter: ExporterOTLP,
	})
	if err == nil {
		t.Error("NewProvider() error = nil without an OTLP endpoint")
	}
}

func TestProvider_Tracer(t *testing.T) {
	provider := newTestProvider(t)

	tracer := provider.Tracer("test")
	if tracer == nil {
		t.Fatal("Tracer() = nil")
	}

	_, span := tracer.Start(context.Background(), "test-span")
	span.End()
}

func TestProvider_Tracer_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	tracer := provider.Tracer("test")
	if tracer == nil {
		t.Fatal("Tracer() = nil for a disabled provider")
	}
}
