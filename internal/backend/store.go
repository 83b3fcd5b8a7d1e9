package backend

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("backend: key not found")

// subscriptionBuffer is the per-subscription channel capacity. A
// subscriber that falls this far behind starts losing notifications;
// the message queue remains the durable source of truth.
const subscriptionBuffer = 64

// Store is the uniform contract for the shared backend tiers.
type Store interface {
	// Available reports current connectivity. It is re-checked before
	// each dependent operation, never cached for the process lifetime.
	Available(ctx context.Context) bool

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key with a TTL countdown attached at
	// write time. A TTL of 0 means no expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Append adds value to the ordered list stored under key,
	// preserving FIFO order, and refreshes the list TTL.
	Append(ctx context.Context, key, value string, ttl time.Duration) error

	// Range returns the full ordered list stored under key. An absent
	// or expired key yields an empty slice, not an error.
	Range(ctx context.Context, key string) ([]string, error)

	// Trim discards the oldest entries of the list under key so that
	// at most max remain. A max of 0 or less is a no-op.
	Trim(ctx context.Context, key string, max int) error

	// Keys returns all keys matching a glob pattern (e.g. "session:*").
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Publish fans payload out to every current subscriber of channel.
	// There is no persistence or replay: a subscriber that connects
	// after publish receives nothing for that event.
	Publish(ctx context.Context, channel, payload string) error

	// Subscribe registers for payloads published to channel. The
	// returned Subscription must be closed when no longer needed.
	Subscribe(ctx context.Context, channel string) (*Subscription, error)
}

// Subscription is a live registration on a pub/sub channel.
type Subscription struct {
	ch       chan string
	once     sync.Once
	teardown func()
}

func newSubscription(teardown func()) *Subscription {
	return &Subscription{
		ch:       make(chan string, subscriptionBuffer),
		teardown: teardown,
	}
}

// Messages returns the channel on which published payloads arrive.
// It is closed after Close.
func (s *Subscription) Messages() <-chan string {
	return s.ch
}

// Close tears down the subscription. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.teardown != nil {
			s.teardown()
		}
	})
}

// deliver pushes a payload without blocking the publisher. Returns
// false if the subscriber buffer is full.
func (s *Subscription) deliver(payload string) bool {
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}
