package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/stacklok/toolhive-autosave/pkg/versions"
)

// ResourceInstanceKey names the document instance a daemon saves
const ResourceInstanceKey = attribute.Key("thv.autosave.instance")

// ProviderOption configures NewTracerProvider and NewMeterProvider
type ProviderOption func(*providerConfig)

// providerConfig is shared by the tracer and meter providers so both report the same resource
type providerConfig struct {
	serviceName    string
	serviceVersion string
	instance       string

	endpoint string
	insecure bool
	headers  map[string]string

	tracing      *TracingConfig
	spanExporter sdktrace.SpanExporter

	metrics    *MetricsConfig
	registerer prometheus.Registerer
}

func newProviderConfig(opts []ProviderOption) *providerConfig {
	cfg := &providerConfig{
		serviceName:    DefaultServiceName,
		serviceVersion: versions.Version,
		endpoint:       DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithService sets the service name and version reported in the resource
func WithService(name, version string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.serviceName = name
		cfg.serviceVersion = version
	}
}

// WithInstance tags the resource with the saved document instance
func WithInstance(name string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.instance = name
	}
}

// WithExporter sets the OTLP/HTTP collector for traces and pushed metrics
func WithExporter(endpoint string, insecure bool, headers map[string]string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.endpoint = endpoint
		cfg.insecure = insecure
		cfg.headers = headers
	}
}

// WithTracingConfig enables tracing as configured
func WithTracingConfig(tc *TracingConfig) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.tracing = tc
	}
}

// WithSpanExporter replaces the OTLP span exporter
func WithSpanExporter(exporter sdktrace.SpanExporter) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.spanExporter = exporter
	}
}

// WithMetricsConfig enables metrics as configured
func WithMetricsConfig(mc *MetricsConfig) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.metrics = mc
	}
}

// WithPrometheusRegisterer sets the registry the Prometheus reader registers with.
// Without it the default registerer is used.
func WithPrometheusRegisterer(reg prometheus.Registerer) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.registerer = reg
	}
}

// providerOptions translates the daemon's telemetry config into provider options
func providerOptions(cfg *Config, instance string) []ProviderOption {
	return []ProviderOption{
		WithService(cfg.GetServiceName(), cfg.GetServiceVersion()),
		WithInstance(instance),
		WithExporter(cfg.GetEndpoint(), cfg.Insecure, cfg.Headers),
		WithTracingConfig(cfg.Tracing),
		WithMetricsConfig(cfg.Metrics),
	}
}

// resource builds the resource both providers attach to their data.
// resource.New is used instead of resource.Default to avoid schema URL conflicts.
func (c *providerConfig) resource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(c.serviceName),
		semconv.ServiceVersion(c.serviceVersion),
	}
	if c.instance != "" {
		attrs = append(attrs, ResourceInstanceKey.String(c.instance))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
