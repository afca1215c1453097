// Package telemetry provides OpenTelemetry instrumentation for the autosave daemon.
// Save passes and control requests are traced over OTLP, and their metrics can be
// pushed over OTLP, scraped from the control server's /metrics path, or both.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/toolhive-autosave/pkg/versions"
)

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "thv-autosave"

	// DefaultEndpoint is the default OTLP/HTTP collector endpoint
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling samples every trace. Save passes are rare enough to keep them all.
	DefaultSampling = 1.0

	// DefaultMetricsInterval is how often metrics are pushed over OTLP
	DefaultMetricsInterval = 60 * time.Second
)

// Config represents the telemetry section of the daemon configuration
type Config struct {
	// Enabled turns telemetry on. When false every provider is a no-op.
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to "thv-autosave"
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the build version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP/HTTP collector as host:port; /v1/traces and /v1/metrics are appended
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends OTLP over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are sent with every OTLP export, typically collector credentials
	Headers map[string]string `yaml:"headers,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig defines tracing-specific configuration
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of root traces kept, between 0.0 and 1.0
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig defines metrics-specific configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// OTLP pushes metrics to the collector endpoint
	OTLP bool `yaml:"otlp,omitempty"`

	// Interval between OTLP pushes, as a Go duration string
	Interval string `yaml:"interval,omitempty"`

	// Prometheus exposes metrics on the control server's /metrics path
	Prometheus bool `yaml:"prometheus,omitempty"`
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the configured version or the build version
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return versions.Version
	}
	return c.ServiceVersion
}

// GetEndpoint returns the endpoint, using default if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the sampling ratio, DefaultSampling when unset
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0.0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetInterval returns the OTLP push interval. Invalid values fall back to the default;
// Validate reports them.
func (c *MetricsConfig) GetInterval() time.Duration {
	if c == nil || c.Interval == "" {
		return DefaultMetricsInterval
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return DefaultMetricsInterval
	}
	return d
}

// Validate reports every problem in the telemetry configuration
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error

	for name := range c.Headers {
		if name == "" {
			errs = append(errs, errors.New("headers: empty header name"))
			break
		}
	}

	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	return errors.Join(errs...)
}

// Validate validates the tracing configuration
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	if c.Sampling < 0 || c.Sampling > 1.0 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}

	return nil
}

// Validate validates the metrics configuration
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error

	if !c.OTLP && !c.Prometheus {
		errs = append(errs, errors.New("at least one of otlp or prometheus must be enabled"))
	}

	if c.Interval != "" {
		if d, err := time.ParseDuration(c.Interval); err != nil {
			errs = append(errs, fmt.Errorf("invalid interval %q: %w", c.Interval, err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
		}
	}

	return errors.Join(errs...)
}
