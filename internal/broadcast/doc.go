// Package broadcast notifies all worker processes that a new message
// has arrived for a session, so the worker holding that session's live
// stream connection can deliver it. One channel exists per session
// identifier; notifications are ephemeral and never persisted, the
// message queue remains the durable source of truth.
package broadcast
