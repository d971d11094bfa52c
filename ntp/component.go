package ntp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/base-api/component"
	"github.com/kbukum/base-api/logger"
)

// Component runs the clock's periodic refresh loop under the component
// registry.
type Component struct {
	clock *Clock
	wg    sync.WaitGroup
	mu    sync.Mutex
	done  chan struct{}

	lastErr   error
	lastErrMu sync.Mutex
}

var _ component.Component = (*Component)(nil)

// NewComponent creates the refresh component for clock.
func NewComponent(clock *Clock) *Component {
	return &Component{clock: clock}
}

// Clock returns the managed clock.
func (c *Component) Clock() *Clock { return c.clock }

// Name returns the component name.
func (c *Component) Name() string { return "ntp" }

// Start performs an initial refresh and launches the periodic loop. A
// failed initial refresh is logged, not fatal: the clock serves system time
// until a later refresh succeeds.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done = make(chan struct{})
	c.recordErr(c.clock.Refresh())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop()
	}()
	return nil
}

// Stop terminates the refresh loop.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		close(c.done)
		c.wg.Wait()
		c.done = nil
	}
	return nil
}

// Health reports the current offset and the last refresh failure, if any.
func (c *Component) Health(_ context.Context) component.Health {
	c.lastErrMu.Lock()
	err := c.lastErr
	c.lastErrMu.Unlock()

	if err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusDegraded,
			Message: err.Error(),
		}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("offset %s", c.clock.Offset()),
	}
}

func (c *Component) loop() {
	ticker := time.NewTicker(c.clock.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.recordErr(c.clock.Refresh())
		}
	}
}

func (c *Component) recordErr(err error) {
	if err != nil {
		logger.WithComponent("ntp").Error("Clock refresh failed", logger.Fields(
			logger.FieldError, err.Error(),
		))
	}
	c.lastErrMu.Lock()
	c.lastErr = err
	c.lastErrMu.Unlock()
}
