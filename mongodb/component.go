// Package mongodb manages the shared MongoDB client as a lifecycle
// component.
package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kbukum/base-api/component"
	"github.com/kbukum/base-api/logger"
	"github.com/kbukum/base-api/resilience"
)

// Component owns the driver client. Stores take the *mongo.Database after
// Start; the registry disconnects on shutdown.
type Component struct {
	cfg    Config
	client *mongo.Client
	db     *mongo.Database
	log    *logger.Logger
}

var _ component.Component = (*Component)(nil)

// NewComponent creates the component. No connection is made until Start.
func NewComponent(cfg *Config) (*Component, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Component{
		cfg: *cfg,
		log: logger.WithComponent("mongodb"),
	}, nil
}

// Name returns the component name.
func (c *Component) Name() string { return "mongodb" }

// Database returns the configured database handle. Valid only after Start.
func (c *Component) Database() *mongo.Database { return c.db }

// Start connects and verifies the server with a ping.
func (c *Component) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.cfg.URI))
	if err != nil {
		return err
	}
	// The server may still be coming up when we are; give it a few tries.
	err = resilience.Do(ctx, resilience.DefaultRetryConfig(), func() error {
		return client.Ping(ctx, readpref.Primary())
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return err
	}

	c.client = client
	c.db = client.Database(c.cfg.Database)
	c.log.Info("Connected to MongoDB", logger.Fields("database", c.cfg.Database))
	return nil
}

// Stop disconnects the client.
func (c *Component) Stop(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	c.db = nil
	return err
}

// Health pings the server.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.client == nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "not connected",
		}
	}
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: err.Error(),
		}
	}
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
	}
}
