// Package daemon wires configuration, the engine client, the job store, and
// the workflow manager into a single-instance background process guarded by a
// lock file.
package daemon
