package coordinator

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-autosave/internal/status"
	"github.com/stacklok/toolhive-autosave/internal/telemetry"
)

// Runner starts a background task. The default runs each task on its own goroutine.
type Runner func(task func())

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithName sets the instance name used in logs, metrics and the status file
func WithName(name string) Option {
	return func(c *defaultCoordinator) {
		c.name = name
	}
}

// WithSaveMetrics sets the save metrics for the coordinator
func WithSaveMetrics(metrics *telemetry.SaveMetrics) Option {
	return func(c *defaultCoordinator) {
		c.saveMetrics = metrics
	}
}

// WithTracer sets the tracer used for save pass spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *defaultCoordinator) {
		c.tracer = tracer
	}
}

// WithStatusPersistence persists the save status after every phase transition
func WithStatusPersistence(p status.StatusPersistence) Option {
	return func(c *defaultCoordinator) {
		c.statusPersistence = p
	}
}

// WithInitialStatus seeds the in-memory status, typically with the one loaded at startup
func WithInitialStatus(s *status.SaveStatus) Option {
	return func(c *defaultCoordinator) {
		if s != nil {
			c.status = s.Clone()
		}
	}
}

// WithPassTimeout bounds a single persist call. Zero means no bound.
func WithPassTimeout(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.passTimeout = d
	}
}

// WithRunner replaces the goroutine launcher used for workers and the kill watcher
func WithRunner(r Runner) Option {
	return func(c *defaultCoordinator) {
		if r != nil {
			c.run = r
		}
	}
}
