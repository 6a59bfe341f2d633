package tts

import (
	"log/slog"
	"strings"
	"sync"

	"bindery/internal/engine"
	"bindery/internal/logging"
)

// Status is the connection state of one TTS provider.
type Status string

const (
	StatusDisabled      Status = "disabled"
	StatusConnecting    Status = "connecting"
	StatusAvailable     Status = "available"
	StatusDisconnecting Status = "disconnecting"
	// StatusError exists in the engine's vocabulary but the reconciliation
	// below never assigns it: failures settle in disabled with a message so
	// the UI always renders a steady state. Kept for wire compatibility.
	StatusError Status = "error"
)

// Messages rendered verbatim by the UI for each transition.
const (
	msgDisconnected  = "Disconnected"
	msgConnecting    = "Connecting..."
	msgReconnecting  = "Reconnecting..."
	msgDisconnecting = "Disconnecting..."
	msgConnected     = "Connected"
	msgConnectFailed = "Could not connect, please check your credentials or the service status."
)

// EngineState is the tracked state of one TTS provider, keyed by engine key.
type EngineState struct {
	Status    Status
	Message   string
	Features  []string
	Name      string
	VoicesURL string
}

// Summary returns the first line of the state message.
func (s EngineState) Summary() string {
	if i := strings.IndexByte(s.Message, '\n'); i >= 0 {
		return s.Message[:i]
	}
	return s.Message
}

// Detail returns everything after the first line of the state message.
func (s EngineState) Detail() string {
	if i := strings.IndexByte(s.Message, '\n'); i >= 0 {
		return s.Message[i+1:]
	}
	return ""
}

// Manager tracks credential-driven connect/disconnect flows per TTS provider.
// Connecting to a cloud provider has no synchronous confirmation, so the
// manager marks "connecting" optimistically, reconciles against the voice
// list, then accepts the engine's own state report as the final word.
type Manager struct {
	mu           sync.RWMutex
	states       map[string]EngineState
	voicesLoaded bool
	logger       *slog.Logger
}

// NewManager creates a manager with no tracked engines; the map is populated
// lazily as key properties change.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		states: make(map[string]EngineState),
		logger: logging.WithComponent(logger, "tts"),
	}
}

// EngineKey derives the provider key from a property name. Only properties
// whose name contains both ".tts." and "key" drive connection state; the key
// is the second-to-last dot segment, e.g. "org.daisy.pipeline.tts.azure.key"
// yields "azure".
func EngineKey(propertyName string) (string, bool) {
	if !strings.Contains(propertyName, ".tts.") || !strings.Contains(propertyName, "key") {
		return "", false
	}
	segments := strings.Split(propertyName, ".")
	if len(segments) < 2 {
		return "", false
	}
	key := segments[len(segments)-2]
	if key == "" {
		return "", false
	}
	return key, true
}

// ApplyPropertyChanges advances per-engine state for every credential
// property in the change set. It returns true when the caller must follow up
// with a voices refresh: either a credential changed or the voice list was
// never loaded.
func (m *Manager) ApplyPropertyChanges(changes []engine.Property) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	keyChanged := false
	for _, change := range changes {
		key, ok := EngineKey(change.Name)
		if !ok {
			continue
		}
		keyChanged = true
		m.applyKeyChange(key, change.Value)
	}
	return keyChanged || !m.voicesLoaded
}

// applyKeyChange requires the caller to hold the lock.
func (m *Manager) applyKeyChange(key, value string) {
	empty := strings.TrimSpace(value) == ""
	prior, tracked := m.states[key]

	var next EngineState
	switch {
	case !tracked:
		if empty {
			next = EngineState{Status: StatusDisabled, Message: msgDisconnected}
		} else {
			next = EngineState{Status: StatusConnecting, Message: msgConnecting}
		}
	case prior.Status == StatusAvailable || prior.Status == StatusConnecting:
		if empty {
			next = EngineState{Status: StatusDisconnecting, Message: msgDisconnecting}
		} else {
			next = EngineState{Status: StatusConnecting, Message: msgReconnecting}
		}
	default:
		if empty {
			return
		}
		next = EngineState{Status: StatusConnecting, Message: msgConnecting}
	}

	next.Name = prior.Name
	next.Features = prior.Features
	next.VoicesURL = prior.VoicesURL
	m.states[key] = next
	m.logger.Debug("tts engine transition",
		logging.String(logging.FieldEngine, key),
		logging.String("status", string(next.Status)),
	)
}

// ReconcileVoices applies a voices-refresh response. Every engine present in
// the returned voices is forced to available, overwriting whatever
// transitional state it held. Tracked engines absent from the response are
// settled: available and disabled stay as they are, disconnecting confirms to
// disabled, and anything still connecting degrades to disabled with a
// credential-check message.
func (m *Manager) ReconcileVoices(voices []engine.Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voicesLoaded = true

	present := make(map[string]struct{})
	for _, voice := range voices {
		if voice.Engine == "" {
			continue
		}
		present[voice.Engine] = struct{}{}
		prior := m.states[voice.Engine]
		m.states[voice.Engine] = EngineState{
			Status:    StatusAvailable,
			Message:   msgConnected,
			Name:      prior.Name,
			Features:  prior.Features,
			VoicesURL: prior.VoicesURL,
		}
	}

	for key, state := range m.states {
		if _, ok := present[key]; ok {
			continue
		}
		switch state.Status {
		case StatusAvailable, StatusDisabled:
			// Terminal for this pass.
		case StatusDisconnecting:
			state.Status = StatusDisabled
			state.Message = msgDisconnected
			m.states[key] = state
		default:
			state.Status = StatusDisabled
			state.Message = msgConnectFailed
			m.states[key] = state
			m.logger.Warn("tts engine did not come up",
				logging.String(logging.FieldEngine, key),
			)
		}
	}
}

// SetEnginesState overwrites the tracked map wholesale with the engine's own
// authoritative report.
func (m *Manager) SetEnginesState(infos []engine.TTSEngineInfo) {
	states := make(map[string]EngineState, len(infos))
	for _, info := range infos {
		states[info.Name] = EngineState{
			Status:    Status(info.Status),
			Message:   info.Message,
			Features:  append([]string(nil), info.Features...),
			Name:      info.Nicename,
			VoicesURL: info.VoicesURL,
		}
	}
	m.mu.Lock()
	m.states = states
	m.mu.Unlock()
}

// VoicesLoaded reports whether a voices refresh has ever completed.
func (m *Manager) VoicesLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voicesLoaded
}

// State returns the tracked state for one engine key.
func (m *Manager) State(key string) (EngineState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[key]
	return state, ok
}

// States returns a snapshot of all tracked engine states.
func (m *Manager) States() map[string]EngineState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]EngineState, len(m.states))
	for key, state := range m.states {
		out[key] = state
	}
	return out
}
