// Package workflow drives the conversion lifecycle: it submits authored jobs
// to the engine, mirrors their progress until a terminal status, downloads
// results, reconciles per-provider TTS state after property changes, and
// emits notifications for job, batch, and engine events.
package workflow
