package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEngine() error {
	parsed, err := url.Parse(c.Engine.BaseURL)
	if err != nil {
		return fmt.Errorf("engine.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("engine.base_url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("engine.base_url must include a host")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		return errors.New("paths.socket_path must be set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := strings.TrimSpace(c.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
