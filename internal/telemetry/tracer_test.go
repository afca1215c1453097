package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []ProviderOption
		expectNoOp bool
	}{
		{
			name:       "no tracing config",
			expectNoOp: true,
		},
		{
			name:       "tracing disabled",
			opts:       []ProviderOption{WithTracingConfig(&TracingConfig{Enabled: false})},
			expectNoOp: true,
		},
		{
			name: "OTLP exporter",
			opts: []ProviderOption{
				WithTracingConfig(&TracingConfig{Enabled: true, Sampling: 0.5}),
				WithExporter("127.0.0.1:4318", true, map[string]string{"x-api-key": "secret"}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tp, err := NewTracerProvider(ctx, tt.opts...)
			require.NoError(t, err)

			if tt.expectNoOp {
				assert.IsType(t, noop.TracerProvider{}, tp)
				return
			}

			sdkTP, ok := tp.(*sdktrace.TracerProvider)
			require.True(t, ok, "expected SDK tracer provider")
			// No collector is listening; nothing was recorded so shutdown has nothing to flush
			require.NoError(t, sdkTP.Shutdown(ctx))
		})
	}
}

func TestNewTracerProvider_ResourceCarriesInstance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(ctx,
		WithService("thv-autosave", "1.4.0"),
		WithInstance("chapter-3"),
		WithTracingConfig(&TracingConfig{Enabled: true}),
		WithSpanExporter(exporter),
	)
	require.NoError(t, err)
	sdkTP := tp.(*sdktrace.TracerProvider)

	_, span := tp.Tracer(SaveTracerName).Start(ctx, "coordinator.savePass")
	span.End()
	require.NoError(t, sdkTP.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	res := spans[0].Resource
	value, ok := res.Set().Value(ResourceInstanceKey)
	require.True(t, ok)
	assert.Equal(t, "chapter-3", value.AsString())

	version, ok := res.Set().Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.4.0", version.AsString())

	require.NoError(t, sdkTP.Shutdown(ctx))
}

func TestProviderOptions(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Enabled:        true,
		ServiceName:    "saver",
		ServiceVersion: "2.0.0",
		Endpoint:       "collector.example.com:4318",
		Insecure:       true,
		Headers:        map[string]string{"authorization": "Bearer t"},
		Tracing:        &TracingConfig{Enabled: true},
		Metrics:        &MetricsConfig{Enabled: true, OTLP: true},
	}

	pc := newProviderConfig(providerOptions(cfg, "novel"))

	assert.Equal(t, "saver", pc.serviceName)
	assert.Equal(t, "2.0.0", pc.serviceVersion)
	assert.Equal(t, "novel", pc.instance)
	assert.Equal(t, "collector.example.com:4318", pc.endpoint)
	assert.True(t, pc.insecure)
	assert.Equal(t, cfg.Headers, pc.headers)
	assert.Same(t, cfg.Tracing, pc.tracing)
	assert.Same(t, cfg.Metrics, pc.metrics)
	assert.Nil(t, pc.registerer)
}

func TestNewProviderConfig_Defaults(t *testing.T) {
	t.Parallel()

	pc := newProviderConfig(nil)
	assert.Equal(t, DefaultServiceName, pc.serviceName)
	assert.Equal(t, DefaultEndpoint, pc.endpoint)
	assert.NotEmpty(t, pc.serviceVersion)
	assert.Empty(t, pc.instance)
}
