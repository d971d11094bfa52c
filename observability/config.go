package observability

import (
	"errors"
	"time"

	"github.com/kbukum/base-api/util"
)

// Config configures OpenTelemetry export. Disabled by default; when off the
// global no-op providers stay in place and nothing is exported.
type Config struct {
	// Enabled turns tracing and metrics export on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Endpoint is the OTLP HTTP endpoint host:port (default: localhost:4318).
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// Environment tags exported data (default: development).
	Environment string `yaml:"environment" mapstructure:"environment"`

	// Insecure allows plain HTTP to the collector (default: true).
	Insecure *bool `yaml:"insecure" mapstructure:"insecure"`

	// SampleRate is the trace sampling rate, 0.0 to 1.0 (default: 1.0).
	SampleRate *float64 `yaml:"sample_rate" mapstructure:"sample_rate"`

	// MetricInterval is the metric export interval (default: 15s).
	MetricInterval time.Duration `yaml:"metric_interval" mapstructure:"metric_interval"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Insecure == nil {
		c.Insecure = util.Ptr(true)
	}
	if c.SampleRate == nil {
		c.SampleRate = util.Ptr(1.0)
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 15 * time.Second
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if rate := util.Deref(c.SampleRate); rate < 0 || rate > 1 {
		return errors.New("observability: sample_rate must be between 0 and 1")
	}
	if c.MetricInterval < 0 {
		return errors.New("observability: metric_interval must be positive")
	}
	return nil
}
