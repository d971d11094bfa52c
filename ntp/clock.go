// Package ntp keeps a network-synchronized clock. Timestamps handed to
// peers come from here rather than the bare system clock, so skewed hosts
// still agree on time to within the measured offset.
package ntp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	beevikntp "github.com/beevik/ntp"

	"github.com/kbukum/base-api/logger"
	"github.com/kbukum/base-api/util"
)

// queryFunc measures the clock offset against one server. Swappable in
// tests.
type queryFunc func(server string, timeout time.Duration) (time.Duration, error)

func queryServer(server string, timeout time.Duration) (time.Duration, error) {
	resp, err := beevikntp.QueryWithOptions(server, beevikntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Clock serves the current time corrected by the last measured NTP offset.
type Clock struct {
	cfg   Config
	query queryFunc
	log   *logger.Logger

	// mu guards offset. Now deliberately uses TryLock: if a refresh holds
	// the lock, callers get the uncorrected system time instead of waiting
	// on the network.
	mu     sync.Mutex
	offset time.Duration
}

// NewClock creates a clock from config.
func NewClock(cfg *Config) (*Clock, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Clock{
		cfg:   *cfg,
		query: queryServer,
		log:   logger.WithComponent("ntp"),
	}, nil
}

// Now returns the current UTC time adjusted by the last known offset. When
// the offset is being refreshed it returns the unadjusted system time.
func (c *Clock) Now() time.Time {
	now := time.Now().UTC()
	if !c.mu.TryLock() {
		return now
	}
	offset := c.offset
	c.mu.Unlock()
	return now.Add(offset)
}

// Offset returns the last measured offset.
func (c *Clock) Offset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Refresh measures the offset against the configured servers, trying each
// in order until one answers. The previous offset is kept on total failure.
func (c *Clock) Refresh() error {
	if !util.Deref(c.cfg.Enabled) {
		return nil
	}

	var errs []error
	for _, server := range c.cfg.Servers {
		offset, err := c.query(server, c.cfg.QueryTimeout)
		if err != nil {
			c.log.Warn("NTP query failed", logger.Fields(
				"server", server,
				logger.FieldError, err.Error(),
			))
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}

		c.mu.Lock()
		c.offset = offset
		c.mu.Unlock()

		c.log.Debug("Clock offset refreshed", logger.Fields(
			"server", server,
			"offset_ms", offset.Milliseconds(),
		))
		return nil
	}
	return fmt.Errorf("ntp: all servers failed: %w", errors.Join(errs...))
}
