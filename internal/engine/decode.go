package engine

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wire structs mirror the engine's XML documents. Domain conversion happens
// after unmarshaling so required-field checks produce typed errors instead of
// silent zero values.

type scriptsDoc struct {
	Scripts []scriptDoc `xml:"script"`
}

type scriptDoc struct {
	ID          string            `xml:"id,attr"`
	Href        string            `xml:"href,attr"`
	Nicename    string            `xml:"nicename"`
	Description string            `xml:"description"`
	Version     string            `xml:"version"`
	Inputs      []scriptPortDoc   `xml:"input"`
	Options     []scriptOptionDoc `xml:"option"`
}

type scriptPortDoc struct {
	Name      string `xml:"name,attr"`
	Nicename  string `xml:"nicename,attr"`
	Desc      string `xml:"desc,attr"`
	MediaType string `xml:"mediaType,attr"`
	Required  string `xml:"required,attr"`
	Sequence  string `xml:"sequence,attr"`
	Ordered   string `xml:"ordered,attr"`
}

type scriptOptionDoc struct {
	Name      string `xml:"name,attr"`
	Nicename  string `xml:"nicename,attr"`
	Desc      string `xml:"desc,attr"`
	MediaType string `xml:"mediaType,attr"`
	Type      string `xml:"type,attr"`
	Default   string `xml:"default,attr"`
	Required  string `xml:"required,attr"`
	Sequence  string `xml:"sequence,attr"`
	Ordered   string `xml:"ordered,attr"`
}

type jobsDoc struct {
	Jobs []jobDoc `xml:"job"`
}

type jobDoc struct {
	ID       string  `xml:"id,attr"`
	Href     string  `xml:"href,attr"`
	Priority string  `xml:"priority,attr"`
	Status   string  `xml:"status,attr"`
	Nicename string  `xml:"nicename"`
	BatchID  string  `xml:"batchId"`
	Script   hrefRef `xml:"script"`
	Log      hrefRef `xml:"log"`
	Messages struct {
		Progress string       `xml:"progress,attr"`
		Messages []messageDoc `xml:"message"`
	} `xml:"messages"`
	Results *resultsDoc `xml:"results"`
}

type hrefRef struct {
	Href string `xml:"href,attr"`
}

type messageDoc struct {
	Level     string `xml:"level,attr"`
	Content   string `xml:"content,attr"`
	Sequence  string `xml:"sequence,attr"`
	Timestamp string `xml:"timeStamp,attr"`
}

type resultsDoc struct {
	Href     string           `xml:"href,attr"`
	MimeType string           `xml:"mime-type,attr"`
	Named    []namedResultDoc `xml:"result"`
}

type namedResultDoc struct {
	From     string          `xml:"from,attr"`
	Href     string          `xml:"href,attr"`
	MimeType string          `xml:"mime-type,attr"`
	Name     string          `xml:"name,attr"`
	Nicename string          `xml:"nicename,attr"`
	Files    []resultFileDoc `xml:"result"`
}

type resultFileDoc struct {
	Href string `xml:"href,attr"`
	File string `xml:"file,attr"`
	Size string `xml:"size,attr"`
}

type aliveDoc struct {
	XMLName        xml.Name `xml:"alive"`
	LocalFS        string   `xml:"localfs,attr"`
	Authentication string   `xml:"authentication,attr"`
	Version        string   `xml:"version,attr"`
}

type voicesDoc struct {
	Voices []voiceDoc `xml:"voice"`
}

type voiceDoc struct {
	Engine  string `xml:"engine,attr"`
	Name    string `xml:"name,attr"`
	Lang    string `xml:"lang,attr"`
	Gender  string `xml:"gender,attr"`
	ID      string `xml:"id,attr"`
	Href    string `xml:"href,attr"`
	Preview string `xml:"preview,attr"`
}

type datatypesDoc struct {
	Datatypes []datatypeRefDoc `xml:"datatype"`
}

type datatypeRefDoc struct {
	ID   string `xml:"id,attr"`
	Href string `xml:"href,attr"`
}

type datatypeDoc struct {
	ID      string   `xml:"id,attr"`
	Href    string   `xml:"href,attr"`
	Choices []string `xml:"choice>value"`
}

type parametersDoc struct {
	Parameters []parameterDoc `xml:"parameter"`
}

type parameterDoc struct {
	Name        string `xml:"name,attr"`
	Nicename    string `xml:"nicename,attr"`
	Description string `xml:"description,attr"`
	Type        string `xml:"type,attr"`
	Default     string `xml:"default,attr"`
	Required    string `xml:"required,attr"`
}

type ttsEnginesDoc struct {
	Engines []ttsEngineDoc `xml:"tts-engine"`
}

type ttsEngineDoc struct {
	Name       string `xml:"name,attr"`
	Nicename   string `xml:"nicename,attr"`
	Status     string `xml:"status,attr"`
	Message    string `xml:"message,attr"`
	Features   string `xml:"features,attr"`
	VoicesHref string `xml:"voicesHref,attr"`
}

type jobRequestErrorDoc struct {
	Description string `xml:"description"`
	Trace       string `xml:"trace"`
}

type propertiesDoc struct {
	Properties []propertyDoc `xml:"property"`
}

type propertyDoc struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type jobRequestDoc struct {
	XMLName  xml.Name           `xml:"jobRequest"`
	Priority string             `xml:"priority"`
	Script   hrefRef            `xml:"script"`
	Nicename string             `xml:"nicename"`
	BatchID  string             `xml:"batchId"`
	Inputs   []jobRequestInDoc  `xml:"input"`
	Options  []jobRequestOptDoc `xml:"option"`
}

type jobRequestInDoc struct {
	Name  string `xml:"name,attr"`
	Items []struct {
		Value string `xml:"value,attr"`
	} `xml:"item"`
}

type jobRequestOptDoc struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// DecodeAlive interprets the /alive response. A missing or empty <alive>
// document means the engine is offline, which is a valid decoded state and
// not an error.
func DecodeAlive(data []byte) (Alive, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Alive{}, nil
	}
	var doc aliveDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Alive{}, nil
	}
	return Alive{
		Alive:          true,
		LocalFS:        parseBool(doc.LocalFS),
		Authentication: parseBool(doc.Authentication),
		Version:        doc.Version,
	}, nil
}

// DecodeScripts parses a <scripts> listing.
func DecodeScripts(data []byte) ([]Script, error) {
	var doc scriptsDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scripts document: %w", err)
	}
	scripts := make([]Script, 0, len(doc.Scripts))
	for _, sd := range doc.Scripts {
		script, err := convertScript(sd)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script)
	}
	return scripts, nil
}

// DecodeScript parses a single <script> detail document.
func DecodeScript(data []byte) (Script, error) {
	var doc scriptDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Script{}, fmt.Errorf("parse script document: %w", err)
	}
	return convertScript(doc)
}

func convertScript(doc scriptDoc) (Script, error) {
	if doc.ID == "" {
		return Script{}, &DecodeError{Doc: "script", Field: "id attribute"}
	}
	if strings.TrimSpace(doc.Nicename) == "" {
		return Script{}, &DecodeError{Doc: "script", Field: "nicename"}
	}
	script := Script{
		ID:          doc.ID,
		Href:        doc.Href,
		Nicename:    doc.Nicename,
		Description: doc.Description,
		Version:     doc.Version,
	}
	for _, in := range doc.Inputs {
		script.Inputs = append(script.Inputs, ScriptInput{
			Name:      in.Name,
			Nicename:  in.Nicename,
			Desc:      in.Desc,
			MediaType: in.MediaType,
			Required:  parseBool(in.Required),
			Sequence:  parseBool(in.Sequence),
			Ordered:   parseBool(in.Ordered),
		})
	}
	for _, opt := range doc.Options {
		script.Options = append(script.Options, ScriptOption{
			Name:      opt.Name,
			Nicename:  opt.Nicename,
			Desc:      opt.Desc,
			MediaType: opt.MediaType,
			Type:      opt.Type,
			Default:   opt.Default,
			Required:  parseBool(opt.Required),
			Sequence:  parseBool(opt.Sequence),
			Ordered:   parseBool(opt.Ordered),
		})
	}
	return script, nil
}

// DecodeJobs parses a <jobs> listing.
func DecodeJobs(data []byte) ([]JobData, error) {
	var doc jobsDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse jobs document: %w", err)
	}
	jobs := make([]JobData, 0, len(doc.Jobs))
	for _, jd := range doc.Jobs {
		job, err := convertJob(jd)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// DecodeJob parses a single <job> detail document.
func DecodeJob(data []byte) (JobData, error) {
	var doc jobDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return JobData{}, fmt.Errorf("parse job document: %w", err)
	}
	return convertJob(doc)
}

func convertJob(doc jobDoc) (JobData, error) {
	if doc.ID == "" {
		return JobData{}, &DecodeError{Doc: "job", Field: "id attribute"}
	}
	if doc.Status == "" {
		return JobData{}, &DecodeError{Doc: "job", Field: "status attribute"}
	}
	job := JobData{
		ID:         doc.ID,
		Href:       doc.Href,
		Nicename:   doc.Nicename,
		BatchID:    doc.BatchID,
		ScriptHref: doc.Script.Href,
		Priority:   Priority(doc.Priority),
		Status:     JobStatus(doc.Status),
		Log:        doc.Log.Href,
		Progress:   parseInt(doc.Messages.Progress),
	}
	for _, md := range doc.Messages.Messages {
		job.Messages = append(job.Messages, Message{
			Level:     md.Level,
			Content:   md.Content,
			Sequence:  parseInt(md.Sequence),
			Timestamp: parseInt64(md.Timestamp),
		})
	}
	if doc.Results != nil {
		job.Results = convertResults(*doc.Results)
	}
	return job, nil
}

func convertResults(doc resultsDoc) Results {
	results := Results{Href: doc.Href, MimeType: doc.MimeType}
	for _, nd := range doc.Named {
		named := NamedResult{
			From:     nd.From,
			Href:     nd.Href,
			MimeType: nd.MimeType,
			Name:     nd.Name,
			Nicename: nd.Nicename,
		}
		for _, fd := range nd.Files {
			named.Files = append(named.Files, ResultFile{
				Href: fd.Href,
				File: fd.File,
				Size: parseInt64(fd.Size),
			})
		}
		results.NamedResults = append(results.NamedResults, named)
	}
	return results
}

// DecodeJobCreation interprets the response to a job submission, which is
// either a <job> document or a <jobRequestError> document. The distinction is
// made on document shape, never on HTTP status alone.
func DecodeJobCreation(data []byte) (*JobData, *JobRequestError, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse job creation response: %w", err)
	}
	switch root {
	case "job":
		job, err := DecodeJob(data)
		if err != nil {
			return nil, nil, err
		}
		return &job, nil, nil
	case "jobRequestError":
		reqErr, err := DecodeJobRequestError(data)
		if err != nil {
			return nil, nil, err
		}
		return nil, reqErr, nil
	default:
		return nil, nil, &DecodeError{Doc: "job creation response", Field: "job or jobRequestError element"}
	}
}

// DecodeJobRequestError parses an engine <jobRequestError> document.
func DecodeJobRequestError(data []byte) (*JobRequestError, error) {
	var doc jobRequestErrorDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse jobRequestError document: %w", err)
	}
	return &JobRequestError{Description: doc.Description, Trace: doc.Trace}, nil
}

// DecodeVoices parses a <voices> listing.
func DecodeVoices(data []byte) ([]Voice, error) {
	var doc voicesDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse voices document: %w", err)
	}
	voices := make([]Voice, 0, len(doc.Voices))
	for _, vd := range doc.Voices {
		voices = append(voices, Voice{
			Engine:  vd.Engine,
			Name:    vd.Name,
			Lang:    vd.Lang,
			Gender:  vd.Gender,
			ID:      vd.ID,
			Href:    vd.Href,
			Preview: vd.Preview,
		})
	}
	return voices, nil
}

// DecodeDatatypes parses a <datatypes> listing.
func DecodeDatatypes(data []byte) ([]Datatype, error) {
	var doc datatypesDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse datatypes document: %w", err)
	}
	datatypes := make([]Datatype, 0, len(doc.Datatypes))
	for _, dd := range doc.Datatypes {
		datatypes = append(datatypes, Datatype{ID: dd.ID, Href: dd.Href})
	}
	return datatypes, nil
}

// DecodeDatatype parses a single <datatype> choice definition.
func DecodeDatatype(data []byte) (Datatype, error) {
	var doc datatypeDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Datatype{}, fmt.Errorf("parse datatype document: %w", err)
	}
	return Datatype{ID: doc.ID, Href: doc.Href, Choices: doc.Choices}, nil
}

// DecodeTTSEngines parses the engine's <tts-engines> state report.
func DecodeTTSEngines(data []byte) ([]TTSEngineInfo, error) {
	var doc ttsEnginesDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tts-engines document: %w", err)
	}
	infos := make([]TTSEngineInfo, 0, len(doc.Engines))
	for _, ed := range doc.Engines {
		infos = append(infos, TTSEngineInfo{
			Name:      ed.Name,
			Nicename:  ed.Nicename,
			Status:    ed.Status,
			Message:   ed.Message,
			Features:  strings.Fields(ed.Features),
			VoicesURL: ed.VoicesHref,
		})
	}
	return infos, nil
}

// DecodeStylesheetParameters parses a <parameters> document returned by the
// stylesheet-parameters endpoint. Each parameter becomes a script option
// flagged as a stylesheet parameter.
func DecodeStylesheetParameters(data []byte) ([]ScriptOption, error) {
	var doc parametersDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse parameters document: %w", err)
	}
	options := make([]ScriptOption, 0, len(doc.Parameters))
	for _, pd := range doc.Parameters {
		options = append(options, ScriptOption{
			Name:                pd.Name,
			Nicename:            pd.Nicename,
			Desc:                pd.Description,
			Type:                pd.Type,
			Default:             pd.Default,
			Required:            parseBool(pd.Required),
			StylesheetParameter: true,
		})
	}
	return options, nil
}

// DecodeProperties parses a <properties> listing.
func DecodeProperties(data []byte) ([]Property, error) {
	var doc propertiesDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse properties document: %w", err)
	}
	properties := make([]Property, 0, len(doc.Properties))
	for _, pd := range doc.Properties {
		properties = append(properties, Property{Name: pd.Name, Value: pd.Value})
	}
	return properties, nil
}

// DecodeJobRequest parses a <jobRequest> body back into a JobRequest. Options
// remain as literally encoded; stylesheet parameters stay folded inside the
// stylesheet-parameters option value and can be unfolded with
// ParseStylesheetParameters.
func DecodeJobRequest(data []byte) (JobRequest, error) {
	var doc jobRequestDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return JobRequest{}, fmt.Errorf("parse jobRequest document: %w", err)
	}
	if doc.Script.Href == "" {
		return JobRequest{}, &DecodeError{Doc: "jobRequest", Field: "script href"}
	}
	req := JobRequest{
		ScriptHref: doc.Script.Href,
		Nicename:   doc.Nicename,
		Priority:   Priority(doc.Priority),
		BatchID:    doc.BatchID,
	}
	for _, in := range doc.Inputs {
		input := JobRequestInput{Name: in.Name}
		for _, item := range in.Items {
			input.Values = append(input.Values, item.Value)
		}
		req.Inputs = append(req.Inputs, input)
	}
	for _, opt := range doc.Options {
		req.Options = append(req.Options, JobRequestOption{Name: opt.Name, Value: opt.Value})
	}
	return req, nil
}

func rootElement(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return "", &DecodeError{Doc: "response", Field: "root element"}
		}
		if err != nil {
			return "", err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// parseBool follows the engine's convention of literal "true"/"false" strings.
func parseBool(value string) bool {
	return value == "true"
}

func parseInt(value string) int {
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt64(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
