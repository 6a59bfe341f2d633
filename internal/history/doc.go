// Package history records submitted jobs and their terminal outcomes in
// SQLite, giving the CLI a view of past work after the in-memory job store
// is gone.
package history
