package config

import (
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeEngine() error {
	trimmed := strings.TrimRight(strings.TrimSpace(c.Engine.BaseURL), "/")
	if trimmed == "" {
		trimmed = defaultEngineBaseURL
	}
	if _, err := url.Parse(trimmed); err != nil {
		return fmt.Errorf("engine.base_url: %w", err)
	}
	c.Engine.BaseURL = trimmed
	if c.Engine.RequestTimeout <= 0 {
		c.Engine.RequestTimeout = defaultEngineRequestTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.JobPollInterval <= 0 {
		c.Workflow.JobPollInterval = defaultJobPollInterval
	}
	if c.Workflow.AlivePollInterval <= 0 {
		c.Workflow.AlivePollInterval = defaultAlivePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}
