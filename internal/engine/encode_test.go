package engine_test

import (
	"strings"
	"testing"

	"bindery/internal/engine"
)

func TestEncodeJobRequestRoundTrip(t *testing.T) {
	req := engine.JobRequest{
		ScriptHref: "http://localhost:8181/ws/scripts/dtbook-to-epub3",
		Nicename:   "My Book",
		Priority:   engine.Priority("high"),
		BatchID:    "batch-3",
		Inputs: []engine.JobRequestInput{
			{Name: "source", Values: []string{"book-1.xml", "book-2.xml"}},
		},
		Options: []engine.JobRequestOption{
			{Name: "validation", Value: "true"},
			{Name: "font-size", Value: "120%", StylesheetParameter: true},
			{Name: "voice", Value: `say "hi"`, StylesheetParameter: true},
		},
	}

	body, err := engine.EncodeJobRequest(req)
	if err != nil {
		t.Fatalf("EncodeJobRequest failed: %v", err)
	}

	decoded, err := engine.DecodeJobRequest(body)
	if err != nil {
		t.Fatalf("DecodeJobRequest failed: %v", err)
	}
	if decoded.ScriptHref != req.ScriptHref || decoded.Nicename != req.Nicename {
		t.Fatalf("round trip lost identity: %#v", decoded)
	}
	if decoded.BatchID != "batch-3" || decoded.Priority != engine.Priority("high") {
		t.Fatalf("round trip lost batch/priority: %#v", decoded)
	}
	if len(decoded.Inputs) != 1 || len(decoded.Inputs[0].Values) != 2 {
		t.Fatalf("round trip lost inputs: %#v", decoded.Inputs)
	}

	// Stylesheet parameters must have been folded into one option.
	var folded string
	plain := 0
	for _, opt := range decoded.Options {
		if opt.Name == engine.StylesheetParametersOption {
			folded = opt.Value
			continue
		}
		plain++
	}
	if plain != 1 {
		t.Fatalf("expected 1 plain option, got %d: %#v", plain, decoded.Options)
	}
	if folded == "" {
		t.Fatal("stylesheet-parameters option missing")
	}

	params := engine.ParseStylesheetParameters(folded)
	if len(params) != 2 {
		t.Fatalf("expected 2 unfolded parameters, got %d: %q", len(params), folded)
	}
	if params[0].Name != "font-size" || params[0].Value != "120%" {
		t.Fatalf("unexpected first parameter: %#v", params[0])
	}
	if params[1].Value != `say "hi"` {
		t.Fatalf("escaping lost on round trip: %q", params[1].Value)
	}
}

func TestEncodeJobRequestRequiresScript(t *testing.T) {
	if _, err := engine.EncodeJobRequest(engine.JobRequest{}); err == nil {
		t.Fatal("expected error for missing script href")
	}
}

func TestFormatStylesheetParameters(t *testing.T) {
	opts := []engine.JobRequestOption{
		{Name: "a", Value: "plain"},
		{Name: "b", Value: `with "quotes" and \slash`},
	}
	got := engine.FormatStylesheetParameters(opts)
	want := `(a:"plain")(b:"with \"quotes\" and \\slash")`
	if got != want {
		t.Fatalf("FormatStylesheetParameters = %q, want %q", got, want)
	}

	back := engine.ParseStylesheetParameters(got)
	if len(back) != 2 || back[1].Value != `with "quotes" and \slash` {
		t.Fatalf("parse did not invert format: %#v", back)
	}
}

func TestParseStylesheetParametersSkipsGarbage(t *testing.T) {
	params := engine.ParseStylesheetParameters(`junk(a:"1")more(b:"2"`)
	if len(params) != 1 || params[0].Name != "a" {
		t.Fatalf("expected only the well-formed parameter, got %#v", params)
	}
}

func TestEncodeTTSConfigPriorities(t *testing.T) {
	cfg := engine.TTSConfig{
		Properties: []engine.Property{{Name: "org.daisy.pipeline.tts.azure.key", Value: "secret"}},
		PreferredVoices: []engine.Voice{
			{Engine: "azure", Name: "en-US-JennyNeural", Lang: "en-US", Gender: "female"},
			{Engine: "espeak", Name: "english"},
		},
	}
	body, err := engine.EncodeTTSConfig(cfg)
	if err != nil {
		t.Fatalf("EncodeTTSConfig failed: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, `priority="1"`) || !strings.Contains(text, `priority="2"`) {
		t.Fatalf("voice priorities missing: %s", text)
	}
	if !strings.Contains(text, `key="org.daisy.pipeline.tts.azure.key"`) {
		t.Fatalf("property missing: %s", text)
	}
}

func TestEncodePropertyKeepsEmptyValue(t *testing.T) {
	body, err := engine.EncodeProperty(engine.Property{Name: "org.daisy.pipeline.tts.azure.key", Value: ""})
	if err != nil {
		t.Fatalf("EncodeProperty failed: %v", err)
	}
	if !strings.Contains(string(body), `value=""`) {
		t.Fatalf("empty value not encoded explicitly: %s", body)
	}
}
