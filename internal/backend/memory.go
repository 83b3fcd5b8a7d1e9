package backend

import (
	"context"
	"path"
	"sync"
	"time"
)

// Memory is the in-process fallback tier of Store. It is an explicitly
// owned instance handed to the stores at construction, never a global,
// so tests can inject isolated instances. All state is scoped to the
// current worker process; cross-worker delivery is unavailable on this
// tier.
type Memory struct {
	mu     sync.Mutex
	values map[string]memoryValue
	lists  map[string]*memoryList
	subs   map[string]map[*Subscription]struct{}
	now    func() time.Time
}

type memoryValue struct {
	value   string
	expires time.Time // zero means no expiry
}

type memoryList struct {
	items   []string
	expires time.Time
}

var _ Store = (*Memory)(nil)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithNow overrides the clock used for TTL checks. Test hook.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-process store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		values: make(map[string]memoryValue),
		lists:  make(map[string]*memoryList),
		subs:   make(map[string]map[*Subscription]struct{}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Available always reports true; in-memory operations cannot fail.
func (m *Memory) Available(_ context.Context) bool {
	return true
}

func expired(expires, now time.Time) bool {
	return !expires.IsZero() && now.After(expires)
}

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Get returns the value stored under key, or ErrNotFound once the TTL
// has elapsed.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	if expired(entry.expires, m.now()) {
		delete(m.values, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

// Set stores value under key with a TTL countdown from now.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = memoryValue{
		value:   value,
		expires: expiresAt(m.now(), ttl),
	}
	return nil
}

// Delete removes key. Idempotent.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	delete(m.lists, key)
	return nil
}

// Append adds value to the list under key in arrival order and
// refreshes the list TTL.
func (m *Memory) Append(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	list, ok := m.lists[key]
	if !ok || expired(list.expires, now) {
		list = &memoryList{}
		m.lists[key] = list
	}
	list.items = append(list.items, value)
	list.expires = expiresAt(now, ttl)
	return nil
}

// Range returns the full list under key in append order. Absent or
// expired lists yield an empty slice.
func (m *Memory) Range(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[key]
	if !ok {
		return nil, nil
	}
	if expired(list.expires, m.now()) {
		delete(m.lists, key)
		return nil, nil
	}
	out := make([]string, len(list.items))
	copy(out, list.items)
	return out, nil
}

// Trim keeps only the newest max entries of the list under key.
func (m *Memory) Trim(_ context.Context, key string, max int) error {
	if max <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[key]
	if !ok {
		return nil
	}
	if over := len(list.items) - max; over > 0 {
		list.items = append([]string(nil), list.items[over:]...)
	}
	return nil
}

// Keys returns all live keys matching a glob pattern, across both
// value and list namespaces.
func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var keys []string
	for key, entry := range m.values {
		if expired(entry.expires, now) {
			delete(m.values, key)
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	for key, list := range m.lists {
		if expired(list.expires, now) {
			delete(m.lists, key)
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Publish delivers payload to every current subscriber of channel
// within this process. Slow subscribers lose notifications rather than
// blocking the publisher.
func (m *Memory) Publish(_ context.Context, channel, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub := range m.subs[channel] {
		sub.deliver(payload)
	}
	return nil
}

// Subscribe registers for payloads published to channel. Teardown is
// deterministic: Close unregisters the subscription and closes its
// message channel.
func (m *Memory) Subscribe(_ context.Context, channel string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sub *Subscription
	sub = newSubscription(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if set, ok := m.subs[channel]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(m.subs, channel)
			}
		}
		close(sub.ch)
	})

	if m.subs[channel] == nil {
		m.subs[channel] = make(map[*Subscription]struct{})
	}
	m.subs[channel][sub] = struct{}{}
	return sub, nil
}

// SubscriberCount reports the number of live subscriptions on channel.
func (m *Memory) SubscriberCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[channel])
}
