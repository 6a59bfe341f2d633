package workflow

import (
	"context"
	"strings"

	"bindery/internal/engine"
	"bindery/internal/jobs"
)

// Status summarizes the daemon's view of the engine and the local job list.
type Status struct {
	Running       bool
	EngineRunning bool
	EngineVersion string
	TotalJobs     int
	RunningJobs   int
	LastError     string
}

// EngineRunning reports the result of the most recent liveness probe.
func (m *Manager) EngineRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engineUp
}

// Snapshot captures the environment facts the action predicates depend on.
func (m *Manager) Snapshot() jobs.Snapshot {
	return jobs.Snapshot{
		EngineRunning:         m.EngineRunning(),
		DownloadDirConfigured: strings.TrimSpace(m.downloadDir()) != "",
	}
}

// Status reports the manager's current condition for the status surface.
func (m *Manager) Status() Status {
	m.mu.RLock()
	running := m.running
	engineUp := m.engineUp
	version := m.engineVersion
	lastErr := ""
	if m.lastErr != nil {
		lastErr = m.lastErr.Error()
	}
	m.mu.RUnlock()

	all := m.store.List()
	runningJobs := 0
	for _, job := range all {
		if job.Running() {
			runningJobs++
		}
	}
	return Status{
		Running:       running,
		EngineRunning: engineUp,
		EngineVersion: version,
		TotalJobs:     len(all),
		RunningJobs:   runningJobs,
		LastError:     lastErr,
	}
}

// Scripts returns the cached script catalog, fetching it when empty.
func (m *Manager) Scripts(ctx context.Context) ([]engine.Script, error) {
	m.mu.RLock()
	cached := m.scripts
	m.mu.RUnlock()
	if len(cached) > 0 {
		return append([]engine.Script(nil), cached...), nil
	}
	if err := m.reloadScripts(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]engine.Script(nil), m.scripts...), nil
}

func (m *Manager) reloadScripts(ctx context.Context) error {
	scripts, err := m.client.Scripts(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.scripts = scripts
	m.mu.Unlock()
	return nil
}
