package workflow

import (
	"context"
	"fmt"
	"strings"

	"bindery/internal/engine"
	"bindery/internal/logging"
	"bindery/internal/settings"
	"bindery/internal/tts"
)

// ApplyTTSProperties pushes a set of property changes to the engine and then
// reconciles per-provider TTS state. Every property write completes before
// the voices refresh is issued; the refresh response settles the optimistic
// transitions, and the engine's own report overwrites the result when it is
// reachable.
func (m *Manager) ApplyTTSProperties(ctx context.Context, changes []engine.Property) error {
	if len(changes) == 0 {
		return nil
	}
	needRefresh := m.tts.ApplyPropertyChanges(changes)

	var firstErr error
	for _, change := range changes {
		if err := m.client.SetProperty(ctx, change); err != nil {
			m.logger.Warn("property push failed",
				logging.String("property", change.Name),
				logging.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("set property %s: %w", change.Name, err)
			}
		}
	}

	if m.settings != nil {
		m.persistProperties(changes)
	}

	if needRefresh {
		m.RefreshVoices(ctx)
	}
	return firstErr
}

func (m *Manager) persistProperties(changes []engine.Property) {
	m.settings.Update(func(s *settings.Settings) {
		for _, change := range changes {
			if strings.TrimSpace(change.Value) == "" {
				delete(s.TTSProperties, change.Name)
				continue
			}
			if s.TTSProperties == nil {
				s.TTSProperties = make(map[string]string)
			}
			s.TTSProperties[change.Name] = change.Value
		}
	})
	if err := m.settings.Save(); err != nil {
		m.logger.Warn("settings save failed", logging.Error(err))
	}
}

// RefreshVoices runs the voices refresh and the authoritative engine-state
// fetch. A refresh failure is not an error to the caller: providers that were
// connecting settle into disabled with a credential-check message, which is
// the user-facing answer.
func (m *Manager) RefreshVoices(ctx context.Context) []engine.Voice {
	var cfg engine.TTSConfig
	if m.settings != nil {
		cfg = m.settings.TTSConfig()
	}
	voices, err := m.client.Voices(ctx, cfg)
	if err != nil {
		m.logger.Warn("voices refresh failed", logging.Error(err))
		voices = nil
	}
	m.tts.ReconcileVoices(voices)

	m.mu.Lock()
	m.voices = voices
	m.mu.Unlock()

	if infos, err := m.client.TTSEngines(ctx); err == nil {
		m.tts.SetEnginesState(infos)
	} else {
		m.logger.Debug("tts engine state fetch failed", logging.Error(err))
	}
	return voices
}

// Voices returns the most recently fetched voice list.
func (m *Manager) Voices() []engine.Voice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]engine.Voice(nil), m.voices...)
}

// TTSStates returns the tracked per-provider TTS state map.
func (m *Manager) TTSStates() map[string]tts.EngineState {
	return m.tts.States()
}
