package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	if err := validateHTTPURL("api.base_url", c.API.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.API.UIFallbackURL) != "" {
		if err := validateHTTPURL("api.ui_fallback_url", c.API.UIFallbackURL); err != nil {
			return err
		}
	}
	if c.Session.MaxUploadMiB > 1024 {
		return errors.New("session.max_upload_mib must not exceed 1024")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.HealthCheckInterval < c.Monitor.StatusPollInterval {
		return fmt.Errorf("monitor.health_check_interval (%ds) must not be shorter than monitor.status_poll_interval (%ds)",
			c.Monitor.HealthCheckInterval, c.Monitor.StatusPollInterval)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func validateHTTPURL(field, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", field, value)
	}
	return nil
}
