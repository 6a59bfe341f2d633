// Package jobs owns the local job model: the in-memory store the UI renders
// from, batch aggregation over jobs sharing a batch id, and the permission
// predicates gating every user-facing job action.
package jobs
