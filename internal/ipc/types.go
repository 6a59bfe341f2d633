package ipc

// JobSummary is the wire representation of a tracked job.
type JobSummary struct {
	InternalID  string
	State       string
	EngineJobID string
	Nicename    string
	Script      string
	BatchID     string
	Status      string
	Progress    int
	Error       string
	CanRun      bool
	CanCancel   bool
	CanDelete   bool
	CanClose    bool
}

// JobMessage is one engine execution message.
type JobMessage struct {
	Level   string
	Content string
}

// JobDetail extends JobSummary with messages and results.
type JobDetail struct {
	JobSummary
	Messages []JobMessage
	Results  []ResultFile
	LogHref  string
}

// ResultFile is one downloadable output file.
type ResultFile struct {
	Name string
	Href string
	Size int64
}

// ScriptInfo describes one available conversion script.
type ScriptInfo struct {
	ID          string
	Href        string
	Nicename    string
	Description string
	Version     string
}

// ScriptPortInfo describes one document input of a script.
type ScriptPortInfo struct {
	Name      string
	Nicename  string
	Desc      string
	MediaType string
	Required  bool
	Sequence  bool
}

// ScriptOptionInfo describes one script option. Choices lists the allowed
// values when the option's datatype is enumerable.
type ScriptOptionInfo struct {
	Name     string
	Nicename string
	Desc     string
	Type     string
	Default  string
	Required bool
	Sequence bool
	Choices  []string
}

// ScriptDetail is a script definition with its inputs and options.
type ScriptDetail struct {
	ScriptInfo
	Inputs  []ScriptPortInfo
	Options []ScriptOptionInfo
}

// VoiceInfo describes one TTS voice. Preview carries a ready-to-open sample
// URL when the engine published a preview endpoint for the voice.
type VoiceInfo struct {
	Engine  string
	Name    string
	Lang    string
	Gender  string
	Preview string
}

// TTSEngineStatus reports one provider's connection state.
type TTSEngineStatus struct {
	Key     string
	Name    string
	Status  string
	Message string
}

// PropertyInfo is one engine property.
type PropertyInfo struct {
	Name  string
	Value string
}

// HistoryEntry is one persisted submission record.
type HistoryEntry struct {
	InternalID  string
	EngineJobID string
	Nicename    string
	ScriptID    string
	BatchID     string
	Status      string
	Error       string
	SubmittedAt string
	FinishedAt  string
}

// CheckResult is one preflight check outcome.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

type StatusRequest struct{}

type StatusResponse struct {
	Running       bool
	PID           int
	EngineRunning bool
	EngineVersion string
	TotalJobs     int
	RunningJobs   int
	LastError     string
	HistoryDBPath string
	LockPath      string
	SocketPath    string
	Checks        []CheckResult
}

type StopRequest struct{}

type StopResponse struct {
	Stopped bool
}

type JobListRequest struct {
	IncludeHidden bool
}

type JobListResponse struct {
	Jobs []JobSummary
}

type JobShowRequest struct {
	InternalID string
}

type JobShowResponse struct {
	Job JobDetail
}

type JobSubmitRequest struct {
	ScriptHref string
	Nicename   string
	Priority   string
	BatchID    string
	Inputs     map[string][]string
	Options    map[string]string
}

type JobSubmitResponse struct {
	Job JobSummary
}

type JobCancelRequest struct {
	InternalID string
}

type JobCancelResponse struct {
	Cancelled bool
}

type JobDeleteRequest struct {
	InternalID string
}

type JobDeleteResponse struct {
	Deleted bool
}

type JobCloseRequest struct {
	InternalID string
}

type JobCloseResponse struct {
	Closed bool
}

type JobLogRequest struct {
	InternalID string
}

type JobLogResponse struct {
	Log string
}

type ScriptListRequest struct{}

type ScriptListResponse struct {
	Scripts []ScriptInfo
}

type ScriptShowRequest struct {
	ID string
}

type ScriptShowResponse struct {
	Script ScriptDetail
}

type VoiceListRequest struct {
	Refresh bool
}

type VoiceListResponse struct {
	Voices []VoiceInfo
}

type TTSStatusRequest struct{}

type TTSStatusResponse struct {
	Engines []TTSEngineStatus
}

type PropertyListRequest struct{}

type PropertyListResponse struct {
	Properties []PropertyInfo
}

type PropertySetRequest struct {
	Properties []PropertyInfo
}

type PropertySetResponse struct {
	Applied bool
	Message string
}

type HistoryListRequest struct {
	Limit int
}

type HistoryListResponse struct {
	Entries []HistoryEntry
}

type LogTailRequest struct {
	Offset     int64
	Limit      int
	Follow     bool
	WaitMillis int64
}

type LogTailResponse struct {
	Lines  []string
	Offset int64
}

type TestNotificationRequest struct{}

type TestNotificationResponse struct {
	Sent    bool
	Message string
}
