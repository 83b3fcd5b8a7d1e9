package queue

import "time"

// KeyPrefix is the key namespace for per-session message queues.
const KeyPrefix = "webhook_messages:"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one inbound event payload scoped to a session. Timestamp
// and Source are server-stamped on append.
type Message struct {
	Role      string    `json:"role" validate:"required,oneof=user assistant system"`
	Content   string    `json:"content" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// Key returns the storage key for a session's message queue.
func Key(sessionID string) string {
	return KeyPrefix + sessionID
}
