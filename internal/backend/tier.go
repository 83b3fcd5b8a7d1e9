package backend

import "context"

// Tier identifies which storage tier served an operation.
type Tier string

const (
	// TierRedis is the shared backend, visible to all workers.
	TierRedis Tier = "redis"
	// TierMemory is the in-process fallback, scoped to this worker.
	TierMemory Tier = "memory"
)

// Select picks the storage tier for a single call: the shared tier when
// it is configured and currently reachable, the local tier otherwise.
// The check runs on every call so a backend recovery mid-run is picked
// up immediately.
func Select(ctx context.Context, shared Store, local Store) (Store, Tier) {
	if shared != nil && shared.Available(ctx) {
		return shared, TierRedis
	}
	return local, TierMemory
}
