package engine

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// dataNamespace is the engine's XML namespace for request and response bodies.
const dataNamespace = "http://www.daisy.org/ns/pipeline/data"

// StylesheetParametersOption is the single option name carrying all folded
// stylesheet-parameter values on submission.
const StylesheetParametersOption = "stylesheet-parameters"

type jobRequestOut struct {
	XMLName  xml.Name    `xml:"jobRequest"`
	Xmlns    string      `xml:"xmlns,attr"`
	Priority string      `xml:"priority,omitempty"`
	Script   hrefOut     `xml:"script"`
	Nicename string      `xml:"nicename,omitempty"`
	BatchID  string      `xml:"batchId,omitempty"`
	Inputs   []inputOut  `xml:"input"`
	Options  []optionOut `xml:"option"`
}

type hrefOut struct {
	Href string `xml:"href,attr"`
}

type inputOut struct {
	Name  string    `xml:"name,attr"`
	Items []itemOut `xml:"item"`
}

type itemOut struct {
	Value string `xml:"value,attr"`
}

type optionOut struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type propertyOut struct {
	XMLName xml.Name `xml:"property"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}

type ttsConfigOut struct {
	XMLName    xml.Name         `xml:"config"`
	Properties []ttsPropertyOut `xml:"property"`
	Voices     []ttsVoiceOut    `xml:"voice"`
}

type ttsPropertyOut struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type ttsVoiceOut struct {
	Engine   string `xml:"engine,attr"`
	Name     string `xml:"name,attr"`
	Lang     string `xml:"lang,attr,omitempty"`
	Gender   string `xml:"gender,attr,omitempty"`
	Priority int    `xml:"priority,attr"`
}

type parametersRequestOut struct {
	XMLName     xml.Name  `xml:"stylesheetParametersRequest"`
	Xmlns       string    `xml:"xmlns,attr"`
	Stylesheets []hrefOut `xml:"userStylesheets>file"`
	Source      *hrefOut  `xml:"sourceDocument>file,omitempty"`
}

// EncodeStylesheetParametersRequest serializes the negotiation body that asks
// the engine which parameters a set of user stylesheets accepts.
func EncodeStylesheetParametersRequest(stylesheetHrefs []string, sourceHref string) ([]byte, error) {
	out := parametersRequestOut{Xmlns: dataNamespace}
	for _, href := range stylesheetHrefs {
		out.Stylesheets = append(out.Stylesheets, hrefOut{Href: href})
	}
	if sourceHref != "" {
		out.Source = &hrefOut{Href: sourceHref}
	}
	data, err := xml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode stylesheet parameters request: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// EncodeJobRequest serializes a JobRequest into the POST /jobs body. Options
// flagged as stylesheet parameters are removed from the plain option list and
// folded into the single stylesheet-parameters option.
func EncodeJobRequest(req JobRequest) ([]byte, error) {
	if strings.TrimSpace(req.ScriptHref) == "" {
		return nil, fmt.Errorf("encode job request: script href is required")
	}

	out := jobRequestOut{
		Xmlns:    dataNamespace,
		Priority: string(req.Priority),
		Script:   hrefOut{Href: req.ScriptHref},
		Nicename: req.Nicename,
		BatchID:  req.BatchID,
	}
	for _, in := range req.Inputs {
		input := inputOut{Name: in.Name}
		for _, value := range in.Values {
			input.Items = append(input.Items, itemOut{Value: value})
		}
		out.Inputs = append(out.Inputs, input)
	}

	var stylesheetParams []JobRequestOption
	for _, opt := range req.Options {
		if opt.StylesheetParameter {
			stylesheetParams = append(stylesheetParams, opt)
			continue
		}
		out.Options = append(out.Options, optionOut{Name: opt.Name, Value: opt.Value})
	}
	if len(stylesheetParams) > 0 {
		out.Options = append(out.Options, optionOut{
			Name:  StylesheetParametersOption,
			Value: FormatStylesheetParameters(stylesheetParams),
		})
	}

	data, err := xml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode job request: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// EncodeProperty serializes a single engine property update. An empty value
// is encoded explicitly; it clears the property on the engine.
func EncodeProperty(p Property) ([]byte, error) {
	data, err := xml.Marshal(propertyOut{Name: p.Name, Value: p.Value})
	if err != nil {
		return nil, fmt.Errorf("encode property: %w", err)
	}
	return data, nil
}

// EncodeTTSConfig serializes the configuration body for a voices refresh.
func EncodeTTSConfig(cfg TTSConfig) ([]byte, error) {
	out := ttsConfigOut{}
	for _, p := range cfg.Properties {
		out.Properties = append(out.Properties, ttsPropertyOut{Key: p.Name, Value: p.Value})
	}
	for i, v := range cfg.PreferredVoices {
		out.Voices = append(out.Voices, ttsVoiceOut{
			Engine:   v.Engine,
			Name:     v.Name,
			Lang:     v.Lang,
			Gender:   v.Gender,
			Priority: i + 1,
		})
	}
	data, err := xml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode tts config: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// FormatStylesheetParameters renders stylesheet-parameter options as the
// engine's CSS-string-like concatenation: (name:"value")(name:"value").
// Quotes and backslashes inside values are backslash-escaped.
func FormatStylesheetParameters(opts []JobRequestOption) string {
	var sb strings.Builder
	for _, opt := range opts {
		sb.WriteByte('(')
		sb.WriteString(opt.Name)
		sb.WriteString(`:"`)
		sb.WriteString(escapeStylesheetValue(opt.Value))
		sb.WriteString(`")`)
	}
	return sb.String()
}

// ParseStylesheetParameters unfolds a stylesheet-parameters option value back
// into individual options, each flagged as a stylesheet parameter. Input that
// does not match the (name:"value") shape is skipped rather than failing.
func ParseStylesheetParameters(value string) []JobRequestOption {
	var opts []JobRequestOption
	for i := 0; i < len(value); {
		if value[i] != '(' {
			i++
			continue
		}
		colon := strings.Index(value[i:], `:"`)
		if colon < 0 {
			break
		}
		name := value[i+1 : i+colon]
		j := i + colon + 2
		var sb strings.Builder
		closed := false
		for j < len(value) {
			c := value[j]
			if c == '\\' && j+1 < len(value) {
				sb.WriteByte(value[j+1])
				j += 2
				continue
			}
			if c == '"' {
				closed = true
				j++
				break
			}
			sb.WriteByte(c)
			j++
		}
		if closed && j < len(value) && value[j] == ')' {
			opts = append(opts, JobRequestOption{
				Name:                name,
				Value:               sb.String(),
				StylesheetParameter: true,
			})
			j++
		}
		i = j
	}
	return opts
}

func escapeStylesheetValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}
