package session

import "time"

// KeyPrefix is the key namespace for session records.
const KeyPrefix = "session:"

// Session is one browser-originated demo context. Fields carries the
// optional personalization values (domain, display name, email, company
// name, contact channels) keyed by field name.
type Session struct {
	ID        string            `json:"session_id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Key returns the storage key for a session identifier.
func Key(id string) string {
	return KeyPrefix + id
}
