package testsupport

import (
	"testing"

	"bindery/internal/config"
	"bindery/internal/history"
	"bindery/internal/settings"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenSettings opens a settings.Store for tests.
func MustOpenSettings(t testing.TB, cfg *config.Config) *settings.Store {
	t.Helper()

	store, err := settings.Open(cfg.SettingsPath())
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	return store
}
