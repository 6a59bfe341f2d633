package tts_test

import (
	"testing"

	"bindery/internal/engine"
	"bindery/internal/logging"
	"bindery/internal/tts"
)

func newManager(t *testing.T) *tts.Manager {
	t.Helper()
	return tts.NewManager(logging.NewNop())
}

func TestEngineKey(t *testing.T) {
	cases := []struct {
		property string
		key      string
		ok       bool
	}{
		{"org.daisy.pipeline.tts.azure.key", "azure", true},
		{"org.daisy.pipeline.tts.google.apikey", "google", true},
		{"org.daisy.pipeline.tts.azure.region", "", false},
		{"org.daisy.pipeline.ws.authentication.key", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		key, ok := tts.EngineKey(tc.property)
		if key != tc.key || ok != tc.ok {
			t.Errorf("EngineKey(%q) = %q, %v; want %q, %v", tc.property, key, ok, tc.key, tc.ok)
		}
	}
}

func TestConnectFlowSucceeds(t *testing.T) {
	m := newManager(t)

	needRefresh := m.ApplyPropertyChanges([]engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: "secret"},
	})
	if !needRefresh {
		t.Fatal("setting a credential must request a voices refresh")
	}
	state, ok := m.State("azure")
	if !ok || state.Status != tts.StatusConnecting {
		t.Fatalf("expected connecting, got %+v (tracked=%v)", state, ok)
	}

	m.ReconcileVoices([]engine.Voice{{Name: "en-US-Jenny", Engine: "azure"}})
	state, _ = m.State("azure")
	if state.Status != tts.StatusAvailable {
		t.Fatalf("expected available after voices arrived, got %+v", state)
	}
	if state.Summary() != "Connected" {
		t.Fatalf("unexpected message %q", state.Message)
	}
}

func TestConnectFlowDegradesWhenVoicesMissing(t *testing.T) {
	m := newManager(t)
	m.ApplyPropertyChanges([]engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: "wrong"},
	})

	m.ReconcileVoices(nil)

	state, _ := m.State("azure")
	if state.Status != tts.StatusDisabled {
		t.Fatalf("expected disabled after failed connect, got %+v", state)
	}
	if state.Summary() != "Could not connect, please check your credentials or the service status." {
		t.Fatalf("unexpected message %q", state.Message)
	}
}

func TestClearingKeyDisconnects(t *testing.T) {
	m := newManager(t)
	m.ApplyPropertyChanges([]engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: "secret"},
	})
	m.ReconcileVoices([]engine.Voice{{Name: "en-US-Jenny", Engine: "azure"}})

	m.ApplyPropertyChanges([]engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: ""},
	})
	state, _ := m.State("azure")
	if state.Status != tts.StatusDisconnecting {
		t.Fatalf("expected disconnecting, got %+v", state)
	}

	m.ReconcileVoices(nil)
	state, _ = m.State("azure")
	if state.Status != tts.StatusDisabled || state.Summary() != "Disconnected" {
		t.Fatalf("expected disabled/Disconnected, got %+v", state)
	}
}

func TestReconnectKeepsMessageDistinct(t *testing.T) {
	m := newManager(t)
	m.ApplyPropertyChanges([]engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: "secret"},
	})
	m.ReconcileVoices([]engine.Voice{{Name: "v", Engine: "azure"}})

	m.ApplyPropertyChanges([]engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: "rotated"},
	})
	state, _ := m.State("azure")
	if state.Status != tts.StatusConnecting || state.Summary() != "Reconnecting..." {
		t.Fatalf("expected reconnecting, got %+v", state)
	}
}

func TestEmptyKeyOnUntrackedEngineStaysDisabled(t *testing.T) {
	m := newManager(t)
	m.ApplyPropertyChanges([]engine.Property{
		{Name: "org.daisy.pipeline.tts.acapela.key", Value: ""},
	})
	state, ok := m.State("acapela")
	if !ok || state.Status != tts.StatusDisabled {
		t.Fatalf("expected disabled, got %+v (tracked=%v)", state, ok)
	}
}

func TestRefreshRequestedUntilVoicesLoaded(t *testing.T) {
	m := newManager(t)

	// No credential changed, but the voice list was never loaded.
	if !m.ApplyPropertyChanges([]engine.Property{{Name: "org.daisy.pipeline.ws.host", Value: "x"}}) {
		t.Fatal("refresh must be requested before the first voices load")
	}

	m.ReconcileVoices(nil)
	if m.ApplyPropertyChanges([]engine.Property{{Name: "org.daisy.pipeline.ws.host", Value: "y"}}) {
		t.Fatal("non-credential change after load must not request a refresh")
	}
}

func TestSetEnginesStateOverwrites(t *testing.T) {
	m := newManager(t)
	m.ApplyPropertyChanges([]engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: "secret"},
	})

	m.SetEnginesState([]engine.TTSEngineInfo{
		{
			Name:     "google",
			Nicename: "Google Cloud TTS",
			Status:   "available",
			Message:  "Connected",
			Features: []string{"marks"},
		},
	})

	if _, ok := m.State("azure"); ok {
		t.Fatal("authoritative report must replace locally tracked engines")
	}
	state, ok := m.State("google")
	if !ok || state.Status != tts.StatusAvailable || state.Name != "Google Cloud TTS" {
		t.Fatalf("unexpected state %+v (tracked=%v)", state, ok)
	}
}

func TestSummaryAndDetail(t *testing.T) {
	state := tts.EngineState{Message: "Connected\nRegion: westeurope"}
	if state.Summary() != "Connected" {
		t.Fatalf("summary = %q", state.Summary())
	}
	if state.Detail() != "Region: westeurope" {
		t.Fatalf("detail = %q", state.Detail())
	}
}
