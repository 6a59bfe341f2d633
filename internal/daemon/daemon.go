package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"bindery/internal/config"
	"bindery/internal/engine"
	"bindery/internal/history"
	"bindery/internal/jobs"
	"bindery/internal/logging"
	"bindery/internal/notifications"
	"bindery/internal/preflight"
	"bindery/internal/workflow"
)

// Daemon owns the long-running services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *engine.Client
	store    *jobs.Store
	history  *history.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Workflow      workflow.Status
	HistoryDBPath string
	LockFilePath  string
	SocketPath    string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, client *engine.Client, store *jobs.Store, wf *workflow.Manager, historyStore *history.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || client == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, engine client, job store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		client:   client,
		store:    store,
		history:  historyStore,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bindery daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("bindery daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("bindery daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Workflow exposes the manager for request handling.
func (d *Daemon) Workflow() *workflow.Manager {
	return d.workflow
}

// Jobs exposes the local job store.
func (d *Daemon) Jobs() *jobs.Store {
	return d.store
}

// Engine exposes the engine client for read-side calls.
func (d *Daemon) Engine() *engine.Client {
	return d.client
}

// History returns recent job submissions, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Record, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.List(ctx, limit)
}

// Preflight runs the startup environment checks.
func (d *Daemon) Preflight(ctx context.Context) []preflight.Result {
	return preflight.RunAll(ctx, d.cfg, d.client)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Workflow:      d.workflow.Status(),
		HistoryDBPath: d.cfg.HistoryDBPath(),
		LockFilePath:  d.lockPath,
		SocketPath:    d.cfg.Paths.SocketPath,
	}
}
