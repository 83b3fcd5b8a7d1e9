package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/backend"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
)

// Store is the per-session ordered message buffer. Like the session
// store it selects its storage tier on every call.
type Store struct {
	shared    backend.Store
	local     *backend.Memory
	ttl       time.Duration
	maxLength int
	log       *logger.Logger
	now       func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxLength caps each session queue at max entries, dropping the
// oldest on overflow. A max of 0 leaves the queue unbounded within the
// TTL window.
func WithMaxLength(max int) StoreOption {
	return func(s *Store) {
		s.maxLength = max
	}
}

// WithNow overrides the clock used for message timestamps. Test hook.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a message queue store. shared may be nil when the
// Redis tier is disabled.
func NewStore(shared backend.Store, local *backend.Memory, ttl time.Duration, log *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		shared: shared,
		local:  local,
		ttl:    ttl,
		log:    log.WithComponent("queue"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds msg to the tail of the session's queue, stamping the
// arrival timestamp. It reports which tier took the write and never
// fails the caller: a shared-tier error degrades this call to memory.
func (s *Store) Append(ctx context.Context, sessionID string, msg Message) (Message, backend.Tier) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("Message marshal failed", logger.ErrorFields("append", err))
		return msg, backend.TierMemory
	}

	store, tier := backend.Select(ctx, s.shared, s.local)
	if err := store.Append(ctx, Key(sessionID), string(data), s.ttl); err != nil {
		s.log.Warn("Shared tier append failed, falling back to memory", map[string]interface{}{
			logger.FieldSessionID: sessionID,
			logger.FieldError:     err.Error(),
		})
		_ = s.local.Append(ctx, Key(sessionID), string(data), s.ttl)
		tier = backend.TierMemory
		store = s.local
	}

	if s.maxLength > 0 {
		if err := store.Trim(ctx, Key(sessionID), s.maxLength); err != nil {
			s.log.Warn("Queue trim failed", map[string]interface{}{
				logger.FieldSessionID: sessionID,
				logger.FieldError:     err.Error(),
			})
		}
	}

	return msg, tier
}

// Peek returns the session's full message sequence in append order
// without removing anything. Absent or expired queues yield an empty
// slice, never an error.
func (s *Store) Peek(ctx context.Context, sessionID string) []Message {
	store, _ := backend.Select(ctx, s.shared, s.local)

	raw, err := store.Range(ctx, Key(sessionID))
	if err != nil {
		raw, _ = s.local.Range(ctx, Key(sessionID))
	}

	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.log.Error("Corrupt queued message, skipping", map[string]interface{}{
				logger.FieldSessionID: sessionID,
				logger.FieldError:     err.Error(),
			})
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// Clear drops the session's queue on both tiers. TTL expiry makes this
// optional; it exists for explicit cleanup.
func (s *Store) Clear(ctx context.Context, sessionID string) {
	if s.shared != nil && s.shared.Available(ctx) {
		if err := s.shared.Delete(ctx, Key(sessionID)); err != nil {
			s.log.Warn("Shared tier clear failed", map[string]interface{}{
				logger.FieldSessionID: sessionID,
				logger.FieldError:     err.Error(),
			})
		}
	}
	_ = s.local.Delete(ctx, Key(sessionID))
}
