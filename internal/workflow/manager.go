package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bindery/internal/config"
	"bindery/internal/engine"
	"bindery/internal/history"
	"bindery/internal/jobs"
	"bindery/internal/logging"
	"bindery/internal/notifications"
	"bindery/internal/settings"
	"bindery/internal/tts"
)

// Manager coordinates job submission, engine polling, result downloads, and
// TTS reconciliation on behalf of the daemon.
type Manager struct {
	cfg      *config.Config
	client   *engine.Client
	store    *jobs.Store
	settings *settings.Store
	tts      *tts.Manager
	history  *history.Store
	notifier notifications.Service
	logger   *slog.Logger

	jobPoll    time.Duration
	alivePoll  time.Duration
	errorRetry time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error

	engineUp      bool
	engineVersion string
	everUp        bool

	scripts         []engine.Script
	voices          []engine.Voice
	notifiedBatches map[string]struct{}
}

// NewManager constructs a workflow manager with a notifier derived from
// configuration.
func NewManager(cfg *config.Config, client *engine.Client, store *jobs.Store, settingsStore *settings.Store, ttsManager *tts.Manager, historyStore *history.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, client, store, settingsStore, ttsManager, historyStore, notifications.NewService(cfg), logger)
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, client *engine.Client, store *jobs.Store, settingsStore *settings.Store, ttsManager *tts.Manager, historyStore *history.Store, notifier notifications.Service, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:             cfg,
		client:          client,
		store:           store,
		settings:        settingsStore,
		tts:             ttsManager,
		history:         historyStore,
		notifier:        notifier,
		logger:          logging.WithComponent(logger, "workflow"),
		jobPoll:         time.Duration(cfg.Workflow.JobPollInterval) * time.Second,
		alivePoll:       time.Duration(cfg.Workflow.AlivePollInterval) * time.Second,
		errorRetry:      time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		notifiedBatches: make(map[string]struct{}),
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// LastError returns the most recent background failure, nil when healthy.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
