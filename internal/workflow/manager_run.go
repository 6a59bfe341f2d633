package workflow

import (
	"context"
	"errors"
	"time"

	"bindery/internal/engine"
	"bindery/internal/jobs"
	"bindery/internal/logging"
)

// Start begins background processing: a liveness loop that tracks engine
// availability and a job loop that mirrors submitted jobs until they finish.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	go m.runAliveLoop(runCtx)
	go m.runJobLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for both loops to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runAliveLoop(ctx context.Context) {
	defer m.wg.Done()
	m.probeEngine(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.alivePoll):
		}
		m.probeEngine(ctx)
	}
}

// probeEngine refreshes the engine availability flag. A lost engine is
// reported once per outage; recovery reloads the script catalog so stale
// definitions never outlive an engine restart.
func (m *Manager) probeEngine(ctx context.Context) {
	alive, err := m.client.Alive(ctx)
	if err != nil {
		m.setLastError(err)
		m.logger.Warn("alive probe returned malformed document", logging.Error(err))
		return
	}

	m.mu.Lock()
	wasUp := m.engineUp
	everUp := m.everUp
	m.engineUp = alive.Alive
	if alive.Alive {
		m.engineVersion = alive.Version
		m.everUp = true
	}
	m.mu.Unlock()

	switch {
	case alive.Alive && !wasUp:
		m.logger.Info("engine online", logging.String("version", alive.Version))
		if err := m.reloadScripts(ctx); err != nil {
			m.logger.Warn("script catalog reload failed", logging.Error(err))
		}
	case !alive.Alive && wasUp && everUp:
		m.logger.Warn("engine went offline")
		if err := m.notifier.NotifyEngineOffline(ctx); err != nil {
			m.logger.Debug("engine offline notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) runJobLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.jobPoll):
		}
		m.syncSubmittedJobs(ctx)
	}
}

// syncSubmittedJobs refreshes every acknowledged, unfinished job from the
// engine. Individual fetch failures are retried on the next tick rather than
// failing the whole pass.
func (m *Manager) syncSubmittedJobs(ctx context.Context) {
	if !m.EngineRunning() {
		return
	}
	for _, job := range m.store.List() {
		if job.State != jobs.StateSubmitted || job.Data == nil || job.Done() {
			continue
		}
		data, err := m.client.Job(ctx, job.Data.Href)
		if err != nil {
			m.setLastError(err)
			m.logger.Warn("job refresh failed",
				logging.String(logging.FieldJobID, job.InternalID),
				logging.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.errorRetry):
			}
			continue
		}
		job.Data = &data
		if !m.store.Update(job) {
			continue
		}
		if job.Done() {
			m.finalizeJob(ctx, job)
		}
	}
}

// finalizeJob handles a job's transition into a terminal engine status:
// history, notifications, result download, and the batch roll-up.
func (m *Manager) finalizeJob(ctx context.Context, job jobs.Job) {
	status := string(job.Data.Status)
	m.logger.Info("job finished",
		logging.String(logging.FieldJobID, job.InternalID),
		logging.String("status", status),
	)
	if m.history != nil {
		if err := m.history.RecordOutcome(ctx, job.InternalID, status, lastErrorMessage(job)); err != nil {
			m.logger.Warn("history outcome write failed", logging.Error(err))
		}
	}

	if job.Data.Status == engine.StatusSuccess {
		if err := m.downloadResults(ctx, job); err != nil {
			m.logger.Warn("result download failed",
				logging.String(logging.FieldJobID, job.InternalID),
				logging.Error(err),
			)
		}
		if err := m.notifier.NotifyJobCompleted(ctx, jobDisplayName(job)); err != nil {
			m.logger.Debug("job notification failed", logging.Error(err))
		}
	} else {
		if err := m.notifier.NotifyJobFailed(ctx, jobDisplayName(job), lastErrorMessage(job)); err != nil {
			m.logger.Debug("job notification failed", logging.Error(err))
		}
	}

	m.maybeNotifyBatch(ctx, job)
}

// maybeNotifyBatch emits one completion notification per batch, when the last
// member reaches a terminal status.
func (m *Manager) maybeNotifyBatch(ctx context.Context, job jobs.Job) {
	batchID := job.BatchID()
	if batchID == "" {
		return
	}
	all := m.store.List()
	if !jobs.AllJobsInBatchDone(all, job) {
		return
	}

	m.mu.Lock()
	if _, seen := m.notifiedBatches[batchID]; seen {
		m.mu.Unlock()
		return
	}
	m.notifiedBatches[batchID] = struct{}{}
	m.mu.Unlock()

	completed, failed := 0, 0
	for _, member := range jobs.JobsInBatch(all, job) {
		if member.Data != nil && member.Data.Status == engine.StatusSuccess {
			completed++
		} else {
			failed++
		}
	}
	if err := m.notifier.NotifyBatchCompleted(ctx, jobDisplayName(job), completed, failed); err != nil {
		m.logger.Debug("batch notification failed", logging.Error(err))
	}
}

func jobDisplayName(job jobs.Job) string {
	if job.Data != nil && job.Data.Nicename != "" {
		return job.Data.Nicename
	}
	if job.Request != nil && job.Request.Nicename != "" {
		return job.Request.Nicename
	}
	return job.InternalID
}

// lastErrorMessage extracts the most recent error-level engine message, empty
// when the engine reported none.
func lastErrorMessage(job jobs.Job) string {
	if job.RequestError != nil {
		return job.RequestError.Description
	}
	if job.Data == nil {
		return ""
	}
	for i := len(job.Data.Messages) - 1; i >= 0; i-- {
		if job.Data.Messages[i].Level == "ERROR" {
			return job.Data.Messages[i].Content
		}
	}
	return ""
}
