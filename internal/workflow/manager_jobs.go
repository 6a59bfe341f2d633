package workflow

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"bindery/internal/engine"
	"bindery/internal/history"
	"bindery/internal/jobs"
	"bindery/internal/logging"
)

// CreateJob registers a new local job for the given request. The first job of
// a batch becomes the batch primary. Nothing is sent to the engine until
// SubmitJob.
func (m *Manager) CreateJob(ctx context.Context, req *engine.JobRequest) (jobs.Job, error) {
	if req == nil || strings.TrimSpace(req.ScriptHref) == "" {
		return jobs.Job{}, fmt.Errorf("create job: script href is required")
	}

	var script *engine.Script
	if m.EngineRunning() {
		if def, err := m.client.Script(ctx, req.ScriptHref); err == nil {
			script = &def
		} else {
			m.logger.Debug("script definition fetch failed", logging.Error(err))
		}
	}

	job := jobs.New(req, script)
	if req.BatchID != "" && len(m.store.InBatch(req.BatchID)) == 0 {
		job.PrimaryForBatch = true
	}
	m.store.Add(job)
	m.logger.Info("job created",
		logging.String(logging.FieldJobID, job.InternalID),
		logging.String("script", req.ScriptHref),
	)
	return job, nil
}

// NegotiateStylesheetParameters asks the engine which extra parameters the
// request's user stylesheets accept and merges the answers into the request's
// options. Options the user already set keep their values; only genuinely new
// parameters are added, flagged for folding at submission time.
func (m *Manager) NegotiateStylesheetParameters(ctx context.Context, internalID string) (jobs.Job, error) {
	job, ok := m.store.Get(internalID)
	if !ok {
		return jobs.Job{}, fmt.Errorf("negotiate parameters: unknown job %s", internalID)
	}
	if job.Request == nil {
		return job, nil
	}
	stylesheets := stylesheetHrefs(job.Request)
	if len(stylesheets) == 0 {
		return job, nil
	}

	params, err := m.client.StylesheetParameters(ctx, stylesheets, firstInputValue(job.Request))
	if err != nil {
		return job, fmt.Errorf("negotiate parameters: %w", err)
	}

	existing := make(map[string]struct{}, len(job.Request.Options))
	for _, opt := range job.Request.Options {
		existing[opt.Name] = struct{}{}
	}
	for _, param := range params {
		if _, clash := existing[param.Name]; clash {
			continue
		}
		job.Request.Options = append(job.Request.Options, engine.JobRequestOption{
			Name:                param.Name,
			Value:               param.Default,
			StylesheetParameter: true,
		})
	}
	m.store.Update(job)
	return job, nil
}

// SubmitJob sends a prepared job to the engine. Engine rejection and
// transport failure both settle into the job record as a failure; the returned
// error covers only caller mistakes such as an unknown id.
func (m *Manager) SubmitJob(ctx context.Context, internalID string) (jobs.Job, error) {
	job, ok := m.store.Get(internalID)
	if !ok {
		return jobs.Job{}, fmt.Errorf("submit job: unknown job %s", internalID)
	}
	if job.State != jobs.StateNew {
		return job, fmt.Errorf("submit job: job %s already submitted", internalID)
	}
	if job.Request == nil {
		return job, fmt.Errorf("submit job: job %s has no request", internalID)
	}
	if !job.Request.Valid() && len(job.Request.Validation) > 0 {
		return job, fmt.Errorf("submit job: job %s has invalid fields", internalID)
	}

	data, reqErr, err := m.client.CreateJob(ctx, *job.Request)
	if err != nil {
		reqErr = &engine.JobRequestError{Description: err.Error()}
	}
	if reqErr != nil {
		m.store.RecordFailure(internalID, reqErr)
		m.logger.Warn("job submission failed",
			logging.String(logging.FieldJobID, internalID),
			logging.String("reason", reqErr.Description),
		)
		m.recordSubmission(ctx, internalID, job, nil, reqErr.Description)
		job, _ = m.store.Get(internalID)
		return job, nil
	}

	job.State = jobs.StateSubmitted
	job.Data = data
	job.RequestError = nil
	m.store.Update(job)
	m.logger.Info("job submitted",
		logging.String(logging.FieldJobID, internalID),
		logging.String("engine_job", data.ID),
	)
	m.recordSubmission(ctx, internalID, job, data, "")
	return job, nil
}

func (m *Manager) recordSubmission(ctx context.Context, internalID string, job jobs.Job, data *engine.JobData, failure string) {
	if m.history == nil {
		return
	}
	rec := history.Record{
		InternalID: internalID,
		Nicename:   jobDisplayName(job),
		BatchID:    job.BatchID(),
	}
	if job.Request != nil {
		rec.ScriptID = path.Base(job.Request.ScriptHref)
	}
	if data != nil {
		rec.EngineJobID = data.ID
		rec.Status = string(data.Status)
	} else {
		rec.Status = string(engine.StatusError)
		rec.Error = failure
	}
	if err := m.history.RecordSubmission(ctx, rec); err != nil {
		m.logger.Warn("history submission write failed", logging.Error(err))
	}
}

// CancelJob withdraws unsubmitted work. Cancelling a batch primary removes
// every still-new member of the batch; cancelling a plain job removes it only
// while it has not been handed to the engine.
func (m *Manager) CancelJob(internalID string) error {
	job, ok := m.store.Get(internalID)
	if !ok {
		return fmt.Errorf("cancel job: unknown job %s", internalID)
	}
	if job.PrimaryForBatch {
		all := m.store.List()
		if !jobs.CanCancelJob(all, job) {
			return fmt.Errorf("cancel job: batch %s has no idle jobs", job.BatchID())
		}
		for _, member := range jobs.JobsInBatch(all, job) {
			if member.State == jobs.StateNew {
				m.store.Remove(member.InternalID)
			}
		}
		return nil
	}
	if job.State != jobs.StateNew {
		return fmt.Errorf("cancel job: job %s already submitted", internalID)
	}
	m.store.Remove(internalID)
	return nil
}

// DeleteJob removes a job from the engine and from the local store. A batch
// primary deletes the whole batch once every member has finished.
func (m *Manager) DeleteJob(ctx context.Context, internalID string) error {
	job, ok := m.store.Get(internalID)
	if !ok {
		return fmt.Errorf("delete job: unknown job %s", internalID)
	}
	all := m.store.List()
	if !jobs.CanDeleteJob(m.Snapshot(), all, job) {
		return fmt.Errorf("delete job: job %s cannot be deleted now", internalID)
	}

	targets := []jobs.Job{job}
	if job.PrimaryForBatch {
		targets = jobs.JobsInBatch(all, job)
	}
	for _, target := range targets {
		if target.Data != nil && target.Data.Href != "" {
			if err := m.client.DeleteJob(ctx, target.Data.Href); err != nil {
				return fmt.Errorf("delete job %s: %w", target.InternalID, err)
			}
		}
		m.store.Remove(target.InternalID)
	}
	return nil
}

// CloseJob dismisses a finished or unsubmitted job from the visible list.
// New jobs are simply dropped; acknowledged jobs are kept, marked ended and
// hidden, so their engine records survive until deletion.
func (m *Manager) CloseJob(internalID string) error {
	job, ok := m.store.Get(internalID)
	if !ok {
		return fmt.Errorf("close job: unknown job %s", internalID)
	}
	all := m.store.List()
	if !jobs.CanCloseJob(all, job) {
		return fmt.Errorf("close job: job %s is still in flight", internalID)
	}

	targets := []jobs.Job{job}
	if job.PrimaryForBatch {
		targets = jobs.JobsInBatch(all, job)
	}
	for _, target := range targets {
		if target.State == jobs.StateNew && target.Data == nil {
			m.store.Remove(target.InternalID)
			continue
		}
		target.State = jobs.StateEnded
		target.Invisible = true
		m.store.Update(target)
	}
	return nil
}

// downloadResults mirrors every result file of a successful job into the
// download folder, under a per-job directory.
func (m *Manager) downloadResults(ctx context.Context, job jobs.Job) error {
	root := m.downloadDir()
	if root == "" {
		return fmt.Errorf("no download folder configured")
	}
	jobDir := filepath.Join(root, sanitizeName(jobDisplayName(job)))

	var firstErr error
	count := 0
	for _, named := range job.Data.Results.NamedResults {
		for _, file := range named.Files {
			name := path.Base(file.Href)
			if name == "" || name == "." || name == "/" {
				continue
			}
			dest := filepath.Join(jobDir, named.Name, name)
			if err := m.client.Download(ctx, file.Href, dest); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			count++
		}
	}
	m.logger.Info("results downloaded",
		logging.String(logging.FieldJobID, job.InternalID),
		logging.Int("files", count),
		logging.String("dir", jobDir),
	)
	return firstErr
}

func (m *Manager) downloadDir() string {
	if m.settings != nil {
		if dir := m.settings.Get().DownloadDir; strings.TrimSpace(dir) != "" {
			return dir
		}
	}
	return m.cfg.Paths.DownloadDir
}

// sanitizeName makes a job display name safe for use as a directory name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "job"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "\x00", "")
	return replacer.Replace(name)
}

// stylesheetHrefs collects the values of a request's stylesheet option, the
// input feeding parameter negotiation.
func stylesheetHrefs(req *engine.JobRequest) []string {
	for _, opt := range req.Options {
		if opt.Name != "stylesheet" || strings.TrimSpace(opt.Value) == "" {
			continue
		}
		return strings.Fields(opt.Value)
	}
	return nil
}

func firstInputValue(req *engine.JobRequest) string {
	for _, in := range req.Inputs {
		if len(in.Values) > 0 {
			return in.Values[0]
		}
	}
	return ""
}
