// Package backend provides the shared key-value and publish/subscribe
// store used for cross-worker session state and message broadcasting.
//
// Store is implemented exactly twice: Redis (the shared tier, backed by
// go-redis) and Memory (the in-process fallback tier). Callers select a
// tier per call via Available, so a backend that recovers mid-run is
// picked up on the very next operation without a restart.
//
// Operations against an unreachable Redis fail fast rather than
// blocking on retries, allowing callers to fall back synchronously.
package backend
