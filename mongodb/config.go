package mongodb

import (
	"errors"
	"time"
)

// Config configures the MongoDB connection.
type Config struct {
	// URI is the mongodb:// connection string (default: mongodb://localhost:27017).
	URI string `yaml:"uri" mapstructure:"uri"`

	// Database is the database name (default: base-api).
	Database string `yaml:"database" mapstructure:"database"`

	// ConnectTimeout bounds initial connection and ping (default: 10s).
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.URI == "" {
		c.URI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "base-api"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c.ConnectTimeout < 0 {
		return errors.New("mongodb: connect_timeout must be positive")
	}
	return nil
}
