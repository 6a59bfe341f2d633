// Package notifications delivers push notifications for job, batch, and
// engine lifecycle events via ntfy. An unconfigured topic yields a noop
// service so callers never branch on whether notifications are enabled.
package notifications
