package ws

import (
	"errors"
	"time"
)

// Config configures websocket sessions.
type Config struct {
	// ClientTimeout is how long a peer may stay silent before the session
	// is dropped (default: 10s). Heartbeat pings go out at half this
	// interval, so a live peer always has two chances to answer.
	ClientTimeout time.Duration `yaml:"client_timeout" mapstructure:"client_timeout"`

	// MaxFrameSize caps a single frame's payload in bytes (default: 250MB).
	MaxFrameSize int64 `yaml:"max_frame_size" mapstructure:"max_frame_size"`

	// WriteTimeout bounds one frame write to the peer (default: 10s).
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.ClientTimeout == 0 {
		c.ClientTimeout = 10 * time.Second
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = 250_000_000
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c.ClientTimeout < 0 {
		return errors.New("ws: client_timeout must be positive")
	}
	if c.MaxFrameSize < 0 {
		return errors.New("ws: max_frame_size must be positive")
	}
	if c.WriteTimeout < 0 {
		return errors.New("ws: write_timeout must be positive")
	}
	return nil
}

// heartbeatInterval is the ping cadence derived from the client timeout.
func (c *Config) heartbeatInterval() time.Duration {
	return c.ClientTimeout / 2
}
