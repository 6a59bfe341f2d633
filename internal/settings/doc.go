// Package settings persists user preferences: the download folder, TTS
// engine properties, and voice preferences. Writes are explicit; callers
// mutate in memory and flush with Save.
package settings
