package observability

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/base-api/component"
	"github.com/kbukum/base-api/logger"
)

// Component manages the telemetry providers' lifecycle.
type Component struct {
	cfg         Config
	serviceName string
	tp          *sdktrace.TracerProvider
	mp          *sdkmetric.MeterProvider
	log         *logger.Logger
}

var _ component.Component = (*Component)(nil)

// NewComponent creates the telemetry component.
func NewComponent(cfg *Config, serviceName string) (*Component, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Component{
		cfg:         *cfg,
		serviceName: serviceName,
		log:         logger.WithComponent("observability"),
	}, nil
}

// Name returns the component name.
func (c *Component) Name() string { return "observability" }

// Start installs the global tracer and meter providers when enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Debug("Telemetry export disabled")
		return nil
	}

	tp, err := initTracer(ctx, c.cfg, c.serviceName)
	if err != nil {
		return err
	}
	mp, err := initMeter(ctx, c.cfg, c.serviceName)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	c.tp = tp
	c.mp = mp

	c.log.Info("Telemetry export started", logger.Fields("endpoint", c.cfg.Endpoint))
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	var firstErr error
	if c.tp != nil {
		if err := c.tp.Shutdown(ctx); err != nil {
			firstErr = err
		}
		c.tp = nil
	}
	if c.mp != nil {
		if err := c.mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		c.mp = nil
	}
	return firstErr
}

// Health reports whether export is active.
func (c *Component) Health(_ context.Context) component.Health {
	if !c.cfg.Enabled {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusHealthy,
			Message: "disabled",
		}
	}
	if c.tp == nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "not started",
		}
	}
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
	}
}
