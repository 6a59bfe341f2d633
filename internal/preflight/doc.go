// Package preflight runs startup environment checks: engine reachability,
// download directory access, and free disk space.
package preflight
