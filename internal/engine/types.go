package engine

import (
	"net/url"
	"strings"
)

// JobStatus is the engine-reported execution status of a job.
type JobStatus string

const (
	StatusIdle    JobStatus = "IDLE"
	StatusRunning JobStatus = "RUNNING"
	StatusSuccess JobStatus = "SUCCESS"
	StatusError   JobStatus = "ERROR"
	StatusFail    JobStatus = "FAIL"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusFail:
		return true
	}
	return false
}

// Priority orders jobs in the engine's execution queue.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Alive describes the engine liveness probe result. Alive is false when the
// engine produced no <alive> document at all.
type Alive struct {
	Alive          bool
	LocalFS        bool
	Authentication bool
	Version        string
}

// Script is an immutable conversion pipeline definition fetched from the engine.
type Script struct {
	ID          string
	Href        string
	Nicename    string
	Description string
	Version     string
	Inputs      []ScriptInput
	Options     []ScriptOption
}

// ScriptInput declares a required or optional document input of a script.
type ScriptInput struct {
	Name      string
	Nicename  string
	Desc      string
	MediaType string
	Required  bool
	Sequence  bool
	Ordered   bool
}

// ScriptOption declares a named option of a script. Options synthesized from a
// stylesheet-parameter negotiation carry StylesheetParameter and are folded
// into a single option value on submission.
type ScriptOption struct {
	Name                string
	Nicename            string
	Desc                string
	MediaType           string
	Type                string
	Default             string
	Required            bool
	Sequence            bool
	Ordered             bool
	StylesheetParameter bool
}

// Message is one engine log line attached to a job.
type Message struct {
	Level     string
	Content   string
	Sequence  int
	Timestamp int64
}

// ResultFile is a single output file inside a named result group.
type ResultFile struct {
	Href string
	File string
	Size int64
}

// NamedResult groups the output files produced for one script output port.
type NamedResult struct {
	From     string
	Href     string
	MimeType string
	Name     string
	Nicename string
	Files    []ResultFile
}

// Results is the full result tree of a completed job.
type Results struct {
	Href         string
	MimeType     string
	NamedResults []NamedResult
}

// JobData is the engine's record of a submitted job.
type JobData struct {
	ID         string
	Href       string
	Nicename   string
	BatchID    string
	ScriptHref string
	Priority   Priority
	Status     JobStatus
	Log        string
	Progress   int
	Messages   []Message
	Results    Results
}

// JobRequestError is the engine's structured rejection of a job submission.
type JobRequestError struct {
	Description string
	Trace       string
}

func (e *JobRequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Description == "" {
		return "job request rejected"
	}
	return e.Description
}

// JobRequestInput carries the document values supplied for one script input.
// Sequence inputs hold more than one value.
type JobRequestInput struct {
	Name   string
	Values []string
}

// JobRequestOption carries one option value for submission. Options flagged as
// stylesheet parameters are folded into the single stylesheet-parameters
// option when the request is encoded.
type JobRequestOption struct {
	Name                string
	Value               string
	StylesheetParameter bool
}

// JobRequest is a user-authored job submission. Validation records per-field
// edit validity maintained while the request is authored; it is local state
// and never serialized.
type JobRequest struct {
	ScriptHref string
	Nicename   string
	Priority   Priority
	BatchID    string
	Inputs     []JobRequestInput
	Options    []JobRequestOption
	Validation map[string]bool
}

// Valid reports whether no authored field is currently marked invalid.
func (r *JobRequest) Valid() bool {
	if r == nil {
		return false
	}
	for _, ok := range r.Validation {
		if !ok {
			return false
		}
	}
	return true
}

// Voice is an engine-reported TTS voice.
type Voice struct {
	Engine  string
	Name    string
	Lang    string
	Gender  string
	ID      string
	Href    string
	Preview string
}

// Language returns the primary language subtag of the voice's BCP-47 tag,
// the substring before the first dash.
func (v Voice) Language() string {
	if i := strings.IndexByte(v.Lang, '-'); i >= 0 {
		return v.Lang[:i]
	}
	return v.Lang
}

// PreviewURL expands the voice's preview URL template with the given sample text.
func (v Voice) PreviewURL(text string) string {
	if v.Preview == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(v.Preview, "?") {
		sep = "&"
	}
	return v.Preview + sep + "text=" + url.QueryEscape(text)
}

// Property is one engine configuration property. An empty value clears the
// property on the engine; it is never encoded as an omission.
type Property struct {
	Name  string
	Value string
}

// TTSConfig is the configuration body submitted with a voices refresh.
type TTSConfig struct {
	Properties      []Property
	PreferredVoices []Voice
}

// Datatype is an enumerable choice definition used by dynamic option forms.
type Datatype struct {
	ID      string
	Href    string
	Choices []string
}

// TTSEngineInfo is the engine's own report of one TTS provider's state,
// fetched from the tts-engines endpoint. It is authoritative over any locally
// reconciled guess.
type TTSEngineInfo struct {
	Name      string
	Nicename  string
	Status    string
	Message   string
	Features  []string
	VoicesURL string
}
