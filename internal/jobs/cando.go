package jobs

import "bindery/internal/engine"

// Snapshot is the explicit slice of application state the permission
// predicates need. Keeping it a plain value keeps every predicate
// independently testable; nothing here reads globals.
type Snapshot struct {
	EngineRunning         bool
	DownloadDirConfigured bool
}

// The predicates below are the single source of truth for what a user may do
// to a job. UI affordances and the control socket both consult them; no other
// code re-derives these conditions.

// CanCreateJob reports whether a new job may be authored.
func CanCreateJob(s Snapshot) bool {
	return s.EngineRunning
}

// CanRunJob reports whether the job's request may be submitted to the engine.
func CanRunJob(s Snapshot, job Job) bool {
	return s.EngineRunning &&
		job.State == StateNew &&
		job.Request != nil &&
		s.DownloadDirConfigured &&
		job.Request.Valid()
}

// CanDeleteJob reports whether the job may be removed. A batch primary is
// deletable only once every sibling reached a terminal status.
func CanDeleteJob(s Snapshot, all []Job, job Job) bool {
	if job.PrimaryForBatch && job.BatchID() != "" {
		return AllJobsInBatchDone(all, job)
	}
	if !s.EngineRunning {
		return false
	}
	if job.State != StateSubmitted && job.State != StateEnded {
		return false
	}
	if job.Data != nil {
		switch job.Data.Status {
		case engine.StatusRunning, engine.StatusIdle:
			return false
		}
	}
	return true
}

// CanCancelJob reports whether the job may be cancelled before submission.
// For a batch job, cancellation is possible while at least one sibling has
// not been submitted yet.
func CanCancelJob(all []Job, job Job) bool {
	if job.BatchID() != "" {
		return IdleCountInBatch(all, job) >= 1
	}
	return job.State == StateNew
}

// CanCloseJob reports whether the job can be dismissed from view.
func CanCloseJob(all []Job, job Job) bool {
	if job.PrimaryForBatch && job.BatchID() != "" {
		return AllJobsInBatchDone(all, job)
	}
	if job.Done() || job.State == StateNew {
		return true
	}
	if job.RequestError != nil {
		return true
	}
	return false
}

// CanEditJob reports whether the job's request may be reopened for editing.
// Jobs belonging to an active batch are not editable.
func CanEditJob(s Snapshot, all []Job, job Job) bool {
	return CanDeleteJob(s, all, job) && job.BatchID() == ""
}
