package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SaveMetricsMeterName is the name used for the save coordinator meter
	SaveMetricsMeterName = "github.com/stacklok/toolhive-autosave/save"

	// SaveTracerName is the name used for save pass and dispatch spans
	SaveTracerName = "github.com/stacklok/toolhive-autosave/save"
)

// Pass outcomes recorded on the passes counter and duration histogram.
const (
	OutcomeComplete = "complete"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"
)

// SaveMetrics holds the OpenTelemetry instruments for save pass metrics
type SaveMetrics struct {
	passDuration      metric.Float64Histogram
	passesTotal       metric.Int64Counter
	coalescedTotal    metric.Int64Counter
	privilegeAttempts metric.Int64Counter
}

// NewSaveMetrics creates a new SaveMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSaveMetrics(provider metric.MeterProvider) (*SaveMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SaveMetricsMeterName)

	passDuration, err := meter.Float64Histogram(
		"thv_autosave_pass_duration_seconds",
		metric.WithDescription("Duration of save passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	passesTotal, err := meter.Int64Counter(
		"thv_autosave_passes_total",
		metric.WithDescription("Total number of save passes by outcome"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, err
	}

	coalescedTotal, err := meter.Int64Counter(
		"thv_autosave_coalesced_requests_total",
		metric.WithDescription("Save requests folded into a pending follow-up pass"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	privilegeAttempts, err := meter.Int64Counter(
		"thv_autosave_privilege_attempts_total",
		metric.WithDescription("Attempts to raise scheduling priority for a save worker"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &SaveMetrics{
		passDuration:      passDuration,
		passesTotal:       passesTotal,
		coalescedTotal:    coalescedTotal,
		privilegeAttempts: privilegeAttempts,
	}, nil
}

// RecordPass records one finished save pass
func (m *SaveMetrics) RecordPass(ctx context.Context, instance string, duration time.Duration, outcome string) {
	if m == nil || m.passesTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("instance", instance),
		attribute.String("outcome", outcome),
	)

	m.passDuration.Record(ctx, duration.Seconds(), attrs)
	m.passesTotal.Add(ctx, 1, attrs)
}

// RecordCoalescedRequest records a save request absorbed by a running worker
func (m *SaveMetrics) RecordCoalescedRequest(ctx context.Context, instance string) {
	if m == nil || m.coalescedTotal == nil {
		return
	}

	m.coalescedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("instance", instance)))
}

// RecordPrivilegeAttempt records whether elevated scheduling was granted to a worker
func (m *SaveMetrics) RecordPrivilegeAttempt(ctx context.Context, instance string, granted bool) {
	if m == nil || m.privilegeAttempts == nil {
		return
	}

	m.privilegeAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("instance", instance),
		attribute.Bool("granted", granted),
	))
}
