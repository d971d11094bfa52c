package ntp

import (
	"errors"
	"time"

	"github.com/kbukum/base-api/util"
)

// DefaultServers is the failover pool queried in order until one responds.
var DefaultServers = []string{
	"pool.ntp.org",
	"time.nist.gov",
	"time.google.com",
	"time.windows.com",
	"ntp.ubuntu.com",
}

// Config configures the synchronized clock.
type Config struct {
	// Servers is the ordered list of NTP hosts to try (default: DefaultServers).
	Servers []string `yaml:"servers" mapstructure:"servers"`

	// RefreshInterval is how often the offset is re-measured (default: 1h).
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`

	// QueryTimeout bounds a single server query (default: 5s).
	QueryTimeout time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"`

	// Enabled turns synchronization on. When false the clock serves the
	// system time unmodified (default: true).
	Enabled *bool `yaml:"enabled" mapstructure:"enabled"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if len(c.Servers) == 0 {
		c.Servers = append([]string(nil), DefaultServers...)
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = time.Hour
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.Enabled == nil {
		c.Enabled = util.Ptr(true)
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c.RefreshInterval < 0 {
		return errors.New("ntp: refresh_interval must be positive")
	}
	if c.QueryTimeout < 0 {
		return errors.New("ntp: query_timeout must be positive")
	}
	return nil
}
