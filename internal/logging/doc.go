// Package logging builds the slog loggers used across bindery and provides
// shared attribute helpers so field names stay consistent between the daemon,
// the workflow manager, and the CLI.
package logging
