// Package tts tracks the connection state of pluggable, credential-gated TTS
// providers. State converges over three passes: optimistic transitions from
// property changes, reconciliation against the refreshed voice list, and a
// final overwrite from the engine's own state report.
package tts
