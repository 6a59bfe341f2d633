package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("absent file reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Engine.BaseURL != "http://localhost:8181/ws" {
		t.Fatalf("engine base url = %q", cfg.Engine.BaseURL)
	}
	if cfg.Workflow.JobPollInterval != 2 || cfg.Workflow.AlivePollInterval != 10 {
		t.Fatalf("unexpected workflow defaults: %+v", cfg.Workflow)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[engine]
base_url = "http://pipeline.local:8181/ws/"
request_timeout = 0

[paths]
data_dir = "`+dir+`"
socket_path = "`+filepath.Join(dir, "d.sock")+`"

[workflow]
job_poll_interval = -3
`)

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("file not detected")
	}
	if cfg.Engine.BaseURL != "http://pipeline.local:8181/ws" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Engine.BaseURL)
	}
	if cfg.Engine.RequestTimeout != 30 {
		t.Fatalf("zero timeout not defaulted: %d", cfg.Engine.RequestTimeout)
	}
	if cfg.Workflow.JobPollInterval != 2 {
		t.Fatalf("negative poll interval not defaulted: %d", cfg.Workflow.JobPollInterval)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "scheme",
			content: "[engine]\nbase_url = \"ftp://host/ws\"\n",
			wantErr: "http or https",
		},
		{
			name:    "log format",
			content: "[logging]\nformat = \"xml\"\n",
			wantErr: "console or json",
		},
		{
			name:    "log level",
			content: "[logging]\nlevel = \"verbose\"\n",
			wantErr: "logging.level",
		},
		{
			name:    "ntfy topic",
			content: "[notifications]\nntfy_topic = \"not-a-url\"\n",
			wantErr: "ntfy_topic",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := config.ExpandPath("~/data/bindery")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "data", "bindery") {
		t.Fatalf("expanded to %q", got)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := writeConfig(t, config.SampleConfig())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config must load cleanly: %v", err)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/var/lib/bindery"
	cfg.Paths.LogDir = "/var/log/bindery"

	if got := cfg.HistoryDBPath(); got != "/var/lib/bindery/history.db" {
		t.Fatalf("history path = %q", got)
	}
	if got := cfg.SettingsPath(); got != "/var/lib/bindery/settings.toml" {
		t.Fatalf("settings path = %q", got)
	}
	if got := cfg.LockPath(); got != "/var/lib/bindery/binderyd.lock" {
		t.Fatalf("lock path = %q", got)
	}
	if got := cfg.LogPath(); got != "/var/log/bindery/bindery.log" {
		t.Fatalf("log path = %q", got)
	}
}
