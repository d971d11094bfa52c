package mail

import "errors"

// Config configures the SMTP sender.
type Config struct {
	// Host is the SMTP server hostname. Required when enabled.
	Host string `yaml:"host" mapstructure:"host"`

	// Port is the SMTP server port (default: 587).
	Port int `yaml:"port" mapstructure:"port"`

	// Username authenticates against the SMTP server.
	Username string `yaml:"username" mapstructure:"username"`

	// Password authenticates against the SMTP server.
	Password string `yaml:"password" mapstructure:"password"`

	// From is the sender address on outgoing mail (default: Username).
	From string `yaml:"from" mapstructure:"from"`

	// Enabled turns outgoing mail on. When false a no-op sender is used
	// (default: false).
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 587
	}
	if c.From == "" {
		c.From = c.Username
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Host == "" {
		return errors.New("mail: host is required when enabled")
	}
	if c.From == "" {
		return errors.New("mail: from address is required when enabled")
	}
	return nil
}
