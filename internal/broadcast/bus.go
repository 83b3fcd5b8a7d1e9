package broadcast

import (
	"context"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/backend"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
)

// ChannelPrefix is prepended to the session identifier to form the
// deterministic per-session channel name.
const ChannelPrefix = "webhook_channel:"

// Channel returns the broadcast channel name for a session.
func Channel(sessionID string) string {
	return ChannelPrefix + sessionID
}

// Bus is the per-session publish/subscribe fan-out. It picks its tier
// per call like the stores: with Redis reachable, notifications reach
// every worker; on the memory tier they stay within this process and
// cross-worker delivery relies on the dispatchers' fallback poll.
type Bus struct {
	shared backend.Store
	local  *backend.Memory
	log    *logger.Logger
}

// NewBus creates a broadcast bus. shared may be nil when the Redis
// tier is disabled.
func NewBus(shared backend.Store, local *backend.Memory, log *logger.Logger) *Bus {
	return &Bus{
		shared: shared,
		local:  local,
		log:    log.WithComponent("broadcast"),
	}
}

// Publish notifies subscribers of sessionID that a new message is
// queued. Failures are logged, never surfaced: delivery falls back to
// the dispatchers' poll against the durable queue.
func (b *Bus) Publish(ctx context.Context, sessionID, payload string) {
	store, tier := backend.Select(ctx, b.shared, b.local)
	if err := store.Publish(ctx, Channel(sessionID), payload); err != nil {
		b.log.Warn("Broadcast publish failed, poll fallback will deliver", map[string]interface{}{
			logger.FieldSessionID: sessionID,
			logger.FieldError:     err.Error(),
		})
		return
	}
	b.log.Debug("Broadcast published", map[string]interface{}{
		logger.FieldSessionID: sessionID,
		logger.FieldStorage:   string(tier),
	})
}

// Subscribe registers on the session's channel for the lifetime of one
// stream dispatcher. The caller must Close the subscription when the
// client connection ends; a nil subscription (no error) means no
// pub/sub is possible right now and the caller should rely on polling.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) *backend.Subscription {
	store, tier := backend.Select(ctx, b.shared, b.local)
	sub, err := store.Subscribe(ctx, Channel(sessionID))
	if err != nil {
		b.log.Warn("Broadcast subscribe failed, using poll only", map[string]interface{}{
			logger.FieldSessionID: sessionID,
			logger.FieldError:     err.Error(),
		})
		return nil
	}
	b.log.Debug("Broadcast subscribed", map[string]interface{}{
		logger.FieldSessionID: sessionID,
		logger.FieldStorage:   string(tier),
	})
	return sub
}

// Degraded reports whether cross-worker fan-out is currently
// unavailable. Surfaced through the health endpoint so the reduced
// single-worker mode is explicit to operators, not silent.
func (b *Bus) Degraded(ctx context.Context) bool {
	return b.shared == nil || !b.shared.Available(ctx)
}
