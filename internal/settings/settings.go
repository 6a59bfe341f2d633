package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"bindery/internal/engine"
)

// VoiceRef identifies a preferred voice without carrying engine-side hrefs,
// which are not stable across engine restarts.
type VoiceRef struct {
	Engine string `toml:"engine"`
	Name   string `toml:"name"`
	Lang   string `toml:"lang,omitempty"`
	Gender string `toml:"gender,omitempty"`
}

// Settings are the persisted user preferences shared by the daemon and CLI.
type Settings struct {
	DownloadDir     string            `toml:"download_dir"`
	TTSProperties   map[string]string `toml:"tts_properties"`
	PreferredVoices []VoiceRef        `toml:"preferred_voices"`
	DefaultVoice    *VoiceRef         `toml:"default_voice"`
}

// Store reads and writes settings at a fixed path. Mutations happen in memory
// through Update; nothing touches disk until Save is called explicitly.
type Store struct {
	mu      sync.RWMutex
	path    string
	current Settings
}

// Open loads settings from path. A missing file yields empty settings; the
// file appears on the first Save.
func Open(path string) (*Store, error) {
	store := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			store.current.TTSProperties = map[string]string{}
			return store, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &store.current); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if store.current.TTSProperties == nil {
		store.current.TTSProperties = map[string]string{}
	}
	return store, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Update applies fn to the in-memory settings. Call Save to persist.
func (s *Store) Update(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.current)
	if s.current.TTSProperties == nil {
		s.current.TTSProperties = map[string]string{}
	}
}

// Save flushes the current settings to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	snapshot := s.copyLocked()
	s.mu.RUnlock()

	data, err := toml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// TTSConfig assembles the configuration body for a voices refresh from the
// persisted TTS properties and voice preferences.
func (s *Store) TTSConfig() engine.TTSConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := engine.TTSConfig{}
	names := make([]string, 0, len(s.current.TTSProperties))
	for name := range s.current.TTSProperties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cfg.Properties = append(cfg.Properties, engine.Property{
			Name:  name,
			Value: s.current.TTSProperties[name],
		})
	}
	for _, ref := range s.current.PreferredVoices {
		cfg.PreferredVoices = append(cfg.PreferredVoices, engine.Voice{
			Engine: ref.Engine,
			Name:   ref.Name,
			Lang:   ref.Lang,
			Gender: ref.Gender,
		})
	}
	return cfg
}

// copyLocked requires the caller to hold at least a read lock.
func (s *Store) copyLocked() Settings {
	out := s.current
	out.TTSProperties = make(map[string]string, len(s.current.TTSProperties))
	for k, v := range s.current.TTSProperties {
		out.TTSProperties[k] = v
	}
	out.PreferredVoices = append([]VoiceRef(nil), s.current.PreferredVoices...)
	if s.current.DefaultVoice != nil {
		ref := *s.current.DefaultVoice
		out.DefaultVoice = &ref
	}
	return out
}
