package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"sync"
	"time"

	"log/slog"

	"bindery/internal/daemon"
	"bindery/internal/engine"
	"bindery/internal/jobs"
	"bindery/internal/logging"
	"bindery/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.WithComponent(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Bindery", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.EngineRunning = status.Workflow.EngineRunning
	resp.EngineVersion = status.Workflow.EngineVersion
	resp.TotalJobs = status.Workflow.TotalJobs
	resp.RunningJobs = status.Workflow.RunningJobs
	resp.LastError = status.Workflow.LastError
	resp.HistoryDBPath = status.HistoryDBPath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	for _, check := range s.daemon.Preflight(s.ctx) {
		resp.Checks = append(resp.Checks, CheckResult{
			Name:   check.Name,
			Passed: check.Passed,
			Detail: check.Detail,
		})
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	all := s.daemon.Jobs().List()
	snapshot := s.daemon.Workflow().Snapshot()
	for _, job := range all {
		if job.Invisible && !req.IncludeHidden {
			continue
		}
		resp.Jobs = append(resp.Jobs, jobSummary(snapshot, all, job))
	}
	return nil
}

func (s *service) JobShow(req JobShowRequest, resp *JobShowResponse) error {
	job, ok := s.daemon.Jobs().Get(req.InternalID)
	if !ok {
		return fmt.Errorf("job %s not found", req.InternalID)
	}
	all := s.daemon.Jobs().List()
	snapshot := s.daemon.Workflow().Snapshot()

	detail := JobDetail{JobSummary: jobSummary(snapshot, all, job)}
	if job.Data != nil {
		detail.LogHref = job.Data.Log
		for _, msg := range job.Data.Messages {
			detail.Messages = append(detail.Messages, JobMessage{Level: msg.Level, Content: msg.Content})
		}
		for _, named := range job.Data.Results.NamedResults {
			for _, file := range named.Files {
				detail.Results = append(detail.Results, ResultFile{Name: named.Name, Href: file.Href, Size: file.Size})
			}
		}
	}
	resp.Job = detail
	return nil
}

// JobSubmit creates a job from the request, negotiates stylesheet parameters
// when the request names user stylesheets, and hands the job to the engine.
func (s *service) JobSubmit(req JobSubmitRequest, resp *JobSubmitResponse) error {
	jobReq := &engine.JobRequest{
		ScriptHref: req.ScriptHref,
		Nicename:   req.Nicename,
		Priority:   engine.Priority(req.Priority),
		BatchID:    req.BatchID,
	}
	for _, name := range sortedKeys(req.Inputs) {
		jobReq.Inputs = append(jobReq.Inputs, engine.JobRequestInput{Name: name, Values: req.Inputs[name]})
	}
	for _, name := range sortedKeys(req.Options) {
		jobReq.Options = append(jobReq.Options, engine.JobRequestOption{Name: name, Value: req.Options[name]})
	}

	wf := s.daemon.Workflow()
	job, err := wf.CreateJob(s.ctx, jobReq)
	if err != nil {
		return err
	}
	if _, err := wf.NegotiateStylesheetParameters(s.ctx, job.InternalID); err != nil {
		s.logger.Warn("stylesheet parameter negotiation failed",
			logging.String(logging.FieldJobID, job.InternalID),
			logging.Error(err),
		)
	}
	job, err = wf.SubmitJob(s.ctx, job.InternalID)
	if err != nil {
		return err
	}
	all := s.daemon.Jobs().List()
	resp.Job = jobSummary(wf.Snapshot(), all, job)
	return nil
}

func (s *service) JobCancel(req JobCancelRequest, resp *JobCancelResponse) error {
	if err := s.daemon.Workflow().CancelJob(req.InternalID); err != nil {
		return err
	}
	resp.Cancelled = true
	return nil
}

func (s *service) JobDelete(req JobDeleteRequest, resp *JobDeleteResponse) error {
	if err := s.daemon.Workflow().DeleteJob(s.ctx, req.InternalID); err != nil {
		return err
	}
	resp.Deleted = true
	return nil
}

func (s *service) JobClose(req JobCloseRequest, resp *JobCloseResponse) error {
	if err := s.daemon.Workflow().CloseJob(req.InternalID); err != nil {
		return err
	}
	resp.Closed = true
	return nil
}

func (s *service) JobLog(req JobLogRequest, resp *JobLogResponse) error {
	job, ok := s.daemon.Jobs().Get(req.InternalID)
	if !ok {
		return fmt.Errorf("job %s not found", req.InternalID)
	}
	if job.Data == nil || job.Data.Log == "" {
		return fmt.Errorf("job %s has no log", req.InternalID)
	}
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	text, err := s.daemon.Engine().JobLog(ctx, job.Data.Log)
	if err != nil {
		return err
	}
	resp.Log = text
	return nil
}

func (s *service) ScriptList(_ ScriptListRequest, resp *ScriptListResponse) error {
	scripts, err := s.daemon.Workflow().Scripts(s.ctx)
	if err != nil {
		return err
	}
	for _, script := range scripts {
		resp.Scripts = append(resp.Scripts, ScriptInfo{
			ID:          script.ID,
			Href:        script.Href,
			Nicename:    script.Nicename,
			Description: script.Description,
			Version:     script.Version,
		})
	}
	return nil
}

func (s *service) ScriptShow(req ScriptShowRequest, resp *ScriptShowResponse) error {
	scripts, err := s.daemon.Workflow().Scripts(s.ctx)
	if err != nil {
		return err
	}
	var href string
	for _, script := range scripts {
		if script.ID == req.ID {
			href = script.Href
			break
		}
	}
	if href == "" {
		return fmt.Errorf("unknown script %q", req.ID)
	}
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	script, err := s.daemon.Engine().Script(ctx, href)
	if err != nil {
		return err
	}
	resp.Script = ScriptDetail{
		ScriptInfo: ScriptInfo{
			ID:          script.ID,
			Href:        script.Href,
			Nicename:    script.Nicename,
			Description: script.Description,
			Version:     script.Version,
		},
	}
	for _, input := range script.Inputs {
		resp.Script.Inputs = append(resp.Script.Inputs, ScriptPortInfo{
			Name:      input.Name,
			Nicename:  input.Nicename,
			Desc:      input.Desc,
			MediaType: input.MediaType,
			Required:  input.Required,
			Sequence:  input.Sequence,
		})
	}
	datatypeHrefs := s.datatypeHrefs(ctx)
	for _, opt := range script.Options {
		info := ScriptOptionInfo{
			Name:     opt.Name,
			Nicename: opt.Nicename,
			Desc:     opt.Desc,
			Type:     opt.Type,
			Default:  opt.Default,
			Required: opt.Required,
			Sequence: opt.Sequence,
		}
		if dtHref, ok := datatypeHrefs[opt.Type]; ok {
			// Choice lookups are best effort; an option without choices
			// still renders as a free-form value.
			if dt, err := s.daemon.Engine().Datatype(ctx, dtHref); err == nil {
				info.Choices = dt.Choices
			}
		}
		resp.Script.Options = append(resp.Script.Options, info)
	}
	return nil
}

// datatypeHrefs maps datatype IDs to their detail hrefs. An unreachable
// datatypes endpoint yields an empty map, never an error.
func (s *service) datatypeHrefs(ctx context.Context) map[string]string {
	datatypes, err := s.daemon.Engine().Datatypes(ctx)
	if err != nil {
		return nil
	}
	hrefs := make(map[string]string, len(datatypes))
	for _, dt := range datatypes {
		hrefs[dt.ID] = dt.Href
	}
	return hrefs
}

// voicePreviewText is the sample phrase baked into voice preview URLs.
const voicePreviewText = "The quick brown fox jumps over the lazy dog."

func (s *service) VoiceList(req VoiceListRequest, resp *VoiceListResponse) error {
	wf := s.daemon.Workflow()
	voices := wf.Voices()
	if req.Refresh || len(voices) == 0 {
		voices = wf.RefreshVoices(s.ctx)
	}
	for _, voice := range voices {
		resp.Voices = append(resp.Voices, VoiceInfo{
			Engine:  voice.Engine,
			Name:    voice.Name,
			Lang:    voice.Lang,
			Gender:  voice.Gender,
			Preview: voice.PreviewURL(voicePreviewText),
		})
	}
	return nil
}

func (s *service) TTSStatus(_ TTSStatusRequest, resp *TTSStatusResponse) error {
	states := s.daemon.Workflow().TTSStates()
	keys := make([]string, 0, len(states))
	for key := range states {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		state := states[key]
		resp.Engines = append(resp.Engines, TTSEngineStatus{
			Key:     key,
			Name:    state.Name,
			Status:  string(state.Status),
			Message: state.Message,
		})
	}
	return nil
}

func (s *service) PropertyList(_ PropertyListRequest, resp *PropertyListResponse) error {
	properties, err := s.daemon.Engine().Properties(s.ctx)
	if err != nil {
		return err
	}
	for _, p := range properties {
		resp.Properties = append(resp.Properties, PropertyInfo{Name: p.Name, Value: p.Value})
	}
	return nil
}

func (s *service) PropertySet(req PropertySetRequest, resp *PropertySetResponse) error {
	if len(req.Properties) == 0 {
		return errors.New("property set requires at least one property")
	}
	changes := make([]engine.Property, 0, len(req.Properties))
	for _, p := range req.Properties {
		changes = append(changes, engine.Property{Name: p.Name, Value: p.Value})
	}
	if err := s.daemon.Workflow().ApplyTTSProperties(s.ctx, changes); err != nil {
		resp.Applied = false
		resp.Message = err.Error()
		return nil
	}
	resp.Applied = true
	return nil
}

func (s *service) HistoryList(req HistoryListRequest, resp *HistoryListResponse) error {
	records, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		entry := HistoryEntry{
			InternalID:  rec.InternalID,
			EngineJobID: rec.EngineJobID,
			Nicename:    rec.Nicename,
			ScriptID:    rec.ScriptID,
			BatchID:     rec.BatchID,
			Status:      rec.Status,
			Error:       rec.Error,
			SubmittedAt: rec.SubmittedAt.Format(time.RFC3339),
		}
		if !rec.FinishedAt.IsZero() {
			entry.FinishedAt = rec.FinishedAt.Format(time.RFC3339)
		}
		resp.Entries = append(resp.Entries, entry)
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func jobSummary(snapshot jobs.Snapshot, all []jobs.Job, job jobs.Job) JobSummary {
	summary := JobSummary{
		InternalID: job.InternalID,
		State:      string(job.State),
		BatchID:    job.BatchID(),
		CanRun:     jobs.CanRunJob(snapshot, job),
		CanCancel:  jobs.CanCancelJob(all, job),
		CanDelete:  jobs.CanDeleteJob(snapshot, all, job),
		CanClose:   jobs.CanCloseJob(all, job),
	}
	if job.Request != nil {
		summary.Nicename = job.Request.Nicename
		summary.Script = job.Request.ScriptHref
	}
	if job.Script != nil {
		summary.Script = job.Script.Nicename
	}
	if job.Data != nil {
		summary.EngineJobID = job.Data.ID
		summary.Status = string(job.Data.Status)
		summary.Progress = job.Data.Progress
		if job.Data.Nicename != "" {
			summary.Nicename = job.Data.Nicename
		}
	}
	if job.RequestError != nil {
		summary.Error = job.RequestError.Description
	}
	return summary
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
