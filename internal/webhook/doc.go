// Package webhook accepts inbound event payloads from the
// conversational-AI provider, appends them to the durable per-session
// message queue, and triggers a broadcast notification so the worker
// holding the session's live stream delivers them.
package webhook
