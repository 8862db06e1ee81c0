package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn (POSTGRES_DSN) is required")
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateCooldowns(); err != nil {
		return err
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if a.Workers < 1 {
		return fmt.Errorf("analysis.workers must be >= 1, got %d", a.Workers)
	}
	if a.QueueSize < 1 {
		return fmt.Errorf("analysis.queue_size must be >= 1, got %d", a.QueueSize)
	}
	if a.TimeoutMs < 1 {
		return fmt.Errorf("analysis.timeout_ms must be >= 1, got %d", a.TimeoutMs)
	}
	return nil
}

func (c *Config) validateCooldowns() error {
	for name, p := range c.Cooldowns.Commands {
		if p.CooldownSec != nil && *p.CooldownSec < 0 {
			return fmt.Errorf("cooldowns.commands.%s.cooldown_sec must be >= 0, got %v", name, *p.CooldownSec)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}
