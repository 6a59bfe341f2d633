package testsupport

import (
	"path/filepath"
	"testing"

	"bindery/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "binderyd.sock")
	cfg.Workflow.JobPollInterval = 1
	cfg.Workflow.AlivePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithEngineURL points the test config at a custom engine base URL, usually
// an httptest server.
func WithEngineURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Engine.BaseURL = url
	}
}

// WithNtfyTopic enables notifications on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
	}
}
