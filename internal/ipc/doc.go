// Package ipc implements JSON-RPC over a Unix domain socket between the
// bindery CLI and the daemon. The server wraps the daemon's operations; the
// client mirrors them one method per RPC.
package ipc
