package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// HTTPMetricsMeterName is the name used for the control server meter
	HTTPMetricsMeterName = "github.com/stacklok/toolhive-autosave/http"

	unknownRoute = "unknown_route"
)

// HTTPMetrics holds the instruments recorded for control server requests
type HTTPMetrics struct {
	requestDuration metric.Float64Histogram
	requestsTotal   metric.Int64Counter
}

// NewHTTPMetrics creates the control server instruments.
// A nil provider yields nil metrics, whose middleware passes requests through.
func NewHTTPMetrics(provider metric.MeterProvider) (*HTTPMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(HTTPMetricsMeterName)

	// A blocked kill keeps its handler running until the outstanding save ends,
	// so the upper buckets cover whole save passes
	requestDuration, err := meter.Float64Histogram(
		"thv_autosave_http_request_duration_seconds",
		metric.WithDescription("Duration of control requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120),
	)
	if err != nil {
		return nil, err
	}

	requestsTotal, err := meter.Int64Counter(
		"thv_autosave_http_requests_total",
		metric.WithDescription("Total number of control requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestDuration: requestDuration,
		requestsTotal:   requestsTotal,
	}, nil
}

// Middleware records duration and count for each request
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		m.record(context.WithoutCancel(r.Context()), r, ww.Status(), time.Since(start))
	})
}

func (m *HTTPMetrics) record(ctx context.Context, r *http.Request, status int, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("method", r.Method),
		attribute.String("route", routePattern(r)),
		attribute.String("status_code", strconv.Itoa(status)),
	}
	// Only accepted requests carry their name; rejected ones could be anything
	if req := chi.URLParam(r, "request"); req != "" && status < http.StatusBadRequest {
		attrs = append(attrs, attribute.String("request", req))
	}

	opt := metric.WithAttributes(attrs...)
	m.requestDuration.Record(ctx, elapsed.Seconds(), opt)
	m.requestsTotal.Add(ctx, 1, opt)
}

// routePattern returns the chi pattern ("/requests/{request}") rather than the raw path,
// keeping label cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unknownRoute
}

// MetricsMiddleware builds HTTPMetrics from a provider and returns its middleware
func MetricsMiddleware(provider metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	metrics, err := NewHTTPMetrics(provider)
	if err != nil {
		return nil, err
	}
	return metrics.Middleware, nil
}
