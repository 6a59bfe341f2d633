// Package logs reads the daemon's log file incrementally for the CLI's
// logs command.
package logs
