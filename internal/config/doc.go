// Package config loads, normalizes, and validates the TOML configuration
// shared by the bindery CLI and daemon.
package config
