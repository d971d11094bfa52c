package main

import (
	"fmt"

	"github.com/kbukum/base-api/auth/jwt"
	"github.com/kbukum/base-api/auth/password"
	"github.com/kbukum/base-api/config"
	"github.com/kbukum/base-api/mail"
	"github.com/kbukum/base-api/mongodb"
	"github.com/kbukum/base-api/ntp"
	"github.com/kbukum/base-api/observability"
	"github.com/kbukum/base-api/server"
	"github.com/kbukum/base-api/version"
	"github.com/kbukum/base-api/ws"
)

// AuthConfig groups the credential-handling sections.
type AuthConfig struct {
	JWT      jwt.Config      `yaml:"jwt" mapstructure:"jwt"`
	Password password.Config `yaml:"password" mapstructure:"password"`
}

// Config is the full apiserver configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Mongo     mongodb.Config       `yaml:"mongo" mapstructure:"mongo"`
	Auth      AuthConfig           `yaml:"auth" mapstructure:"auth"`
	NTP       ntp.Config           `yaml:"ntp" mapstructure:"ntp"`
	WS        ws.Config            `yaml:"ws" mapstructure:"ws"`
	SMTP      mail.Config          `yaml:"smtp" mapstructure:"smtp"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills every section's zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Mongo.ApplyDefaults()
	c.Auth.JWT.ApplyDefaults()
	c.Auth.Password.ApplyDefaults()
	c.NTP.ApplyDefaults()
	c.WS.ApplyDefaults()
	c.SMTP.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	sections := []struct {
		name     string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"mongo", c.Mongo.Validate},
		{"auth.jwt", c.Auth.JWT.Validate},
		{"auth.password", c.Auth.Password.Validate},
		{"ntp", c.NTP.Validate},
		{"ws", c.WS.Validate},
		{"smtp", c.SMTP.Validate},
		{"telemetry", c.Telemetry.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("config.%s: %w", s.name, err)
		}
	}
	return nil
}
