package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/backend"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
)

// Store manages session records across the shared and in-process tiers.
// The tier is chosen on every call, so a backend recovery mid-run takes
// effect on the next operation without a restart.
type Store struct {
	shared backend.Store
	local  *backend.Memory
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNow overrides the clock used for record timestamps. Test hook.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a session store. shared may be nil when the Redis
// tier is disabled; local must be an owned Memory instance.
func NewStore(shared backend.Store, local *backend.Memory, ttl time.Duration, log *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		shared: shared,
		local:  local,
		ttl:    ttl,
		log:    log.WithComponent("session"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register writes or overwrites the record for id as a whole-record
// replacement (last write wins, no field merge) and reports which tier
// took the write. It never fails: a shared-tier error degrades this one
// call to the in-memory tier.
func (s *Store) Register(ctx context.Context, id string, fields map[string]string) (*Session, backend.Tier) {
	now := s.now().UTC()
	record := &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    fields,
	}
	if existing, _ := s.Get(ctx, id); existing != nil {
		record.CreatedAt = existing.CreatedAt
	}

	data, err := json.Marshal(record)
	if err != nil {
		// Cannot happen for this record shape; keep the caller whole anyway.
		s.log.Error("Session marshal failed", logger.ErrorFields("register", err))
		return record, backend.TierMemory
	}

	store, tier := backend.Select(ctx, s.shared, s.local)
	if err := store.Set(ctx, Key(id), string(data), s.ttl); err != nil {
		s.log.Warn("Shared tier write failed, falling back to memory", map[string]interface{}{
			logger.FieldSessionID: id,
			logger.FieldError:     err.Error(),
		})
		_ = s.local.Set(ctx, Key(id), string(data), s.ttl)
		tier = backend.TierMemory
	}

	s.log.Debug("Session stored", map[string]interface{}{
		logger.FieldSessionID: id,
		logger.FieldStorage:   string(tier),
	})
	return record, tier
}

// Get reads the record for id from the currently active tier. An
// absent or expired record yields (nil, nil), not an error.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	store, _ := backend.Select(ctx, s.shared, s.local)

	data, err := store.Get(ctx, Key(id))
	if errors.Is(err, backend.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		// Shared tier failed mid-call: degrade this read to memory.
		data, err = s.local.Get(ctx, Key(id))
		if errors.Is(err, backend.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}

	var record Session
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		s.log.Error("Corrupt session record", map[string]interface{}{
			logger.FieldSessionID: id,
			logger.FieldError:     err.Error(),
		})
		return nil, nil
	}
	return &record, nil
}

// Delete removes the record for id from both tiers. Idempotent:
// deleting a non-existent session is not an error.
func (s *Store) Delete(ctx context.Context, id string) {
	if s.shared != nil && s.shared.Available(ctx) {
		if err := s.shared.Delete(ctx, Key(id)); err != nil {
			s.log.Warn("Shared tier delete failed", map[string]interface{}{
				logger.FieldSessionID: id,
				logger.FieldError:     err.Error(),
			})
		}
	}
	_ = s.local.Delete(ctx, Key(id))
}

// List returns the identifiers of all currently registered sessions on
// the active tier.
func (s *Store) List(ctx context.Context) []string {
	store, _ := backend.Select(ctx, s.shared, s.local)

	keys, err := store.Keys(ctx, KeyPrefix+"*")
	if err != nil {
		keys, _ = s.local.Keys(ctx, KeyPrefix+"*")
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, KeyPrefix))
	}
	return ids
}
