package config

import (
	"fmt"
	"time"
)

// Validate checks the configuration for invariant violations. Defaults are
// assumed to have been applied already.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name must not be empty")
	}
	if c.App.EntryScript == "" {
		return fmt.Errorf("app.entry_script must not be empty")
	}

	for i, a := range c.App.Assets {
		if a.Source == "" {
			return fmt.Errorf("app.assets[%d]: source must not be empty", i)
		}
		if a.Dest == "" {
			return fmt.Errorf("app.assets[%d]: dest must not be empty (use \".\" for the bundle root)", i)
		}
	}

	if err := c.validateRetryDelays(); err != nil {
		return err
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative: %d", c.Retry.MaxRetries)
	}

	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("invalid watch.debounce: %s: %w", c.Watch.Debounce, err)
	}
	if c.Watch.Interval != "" {
		if _, err := time.ParseDuration(c.Watch.Interval); err != nil {
			return fmt.Errorf("invalid watch.interval: %s: %w", c.Watch.Interval, err)
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path must be set when history.enabled is true")
	}
	if c.Notifications.NATS.Enabled && c.Notifications.NATS.URL == "" {
		return fmt.Errorf("notifications.nats.url must be set when notifications.nats.enabled is true")
	}

	return nil
}

// validateRetryDelays validates retry delay durations and their relationship.
func (c *Config) validateRetryDelays() error {
	initDur, err := time.ParseDuration(c.Retry.InitialDelay)
	if err != nil {
		return fmt.Errorf("invalid retry.initial_delay: %s: %w", c.Retry.InitialDelay, err)
	}

	maxDur, err := time.ParseDuration(c.Retry.MaxDelay)
	if err != nil {
		return fmt.Errorf("invalid retry.max_delay: %s: %w", c.Retry.MaxDelay, err)
	}

	if maxDur < initDur {
		return fmt.Errorf("retry.max_delay (%s) must be >= retry.initial_delay (%s)",
			c.Retry.MaxDelay, c.Retry.InitialDelay)
	}

	return nil
}
