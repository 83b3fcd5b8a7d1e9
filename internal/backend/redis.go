package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
)

// Redis is the shared-backend tier of Store, backed by go-redis.
type Redis struct {
	rdb    *goredis.Client
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

var _ Store = (*Redis)(nil)

// NewRedis creates the shared-tier client. It does not dial; use
// Ping or Available to check connectivity.
func NewRedis(cfg Config, log *logger.Logger) (*Redis, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is disabled")
	}

	var opts *goredis.Options
	if cfg.URL != "" {
		parsed, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	dialTimeout, _ := time.ParseDuration(cfg.DialTimeout)
	readTimeout, _ := time.ParseDuration(cfg.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.WriteTimeout)

	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = readTimeout
	opts.WriteTimeout = writeTimeout
	// A caller-visible request must never stall on backend retries;
	// the in-memory tier handles the miss instead.
	opts.MaxRetries = -1

	return &Redis{
		rdb: goredis.NewClient(opts),
		log: log.WithComponent("redis"),
		cfg: cfg,
	}, nil
}

// NewRedisFromClient wraps an existing go-redis client. Used by tests
// to point the shared tier at a miniredis instance.
func NewRedisFromClient(rdb *goredis.Client, log *logger.Logger) *Redis {
	return &Redis{
		rdb: rdb,
		log: log.WithComponent("redis"),
	}
}

// Ping verifies the Redis connection is alive.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Available reports whether Redis is currently reachable. The check is
// a live ping so a recovered or dropped backend is observed per call.
func (r *Redis) Available(ctx context.Context) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()
	return r.rdb.Ping(ctx).Err() == nil
}

// Get retrieves a value by key.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

// Set stores a value with a key and expiration.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key. Missing keys are not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Append pushes value onto the tail of the list at key and refreshes
// the list TTL, preserving FIFO order.
func (r *Redis) Append(ctx context.Context, key, value string, ttl time.Duration) error {
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, value)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Range returns the full list at key in append order.
func (r *Redis) Range(ctx context.Context, key string) ([]string, error) {
	vals, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return vals, nil
}

// Trim keeps only the newest max entries of the list at key.
func (r *Redis) Trim(ctx context.Context, key string, max int) error {
	if max <= 0 {
		return nil
	}
	return r.rdb.LTrim(ctx, key, int64(-max), -1).Err()
}

// Keys returns all keys matching pattern via SCAN.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Publish fans payload out to all current subscribers of channel.
func (r *Redis) Publish(ctx context.Context, channel, payload string) error {
	return r.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe registers on a Redis pub/sub channel. Payloads are
// forwarded to the Subscription until Close is called.
func (r *Redis) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := r.rdb.Subscribe(ctx, channel)

	// Confirm the subscription so a publish immediately after this
	// call is not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := newSubscription(func() {
		_ = ps.Close()
	})

	go func() {
		defer close(sub.ch)
		for msg := range ps.Channel() {
			if !sub.deliver(msg.Payload) {
				r.log.Warn("Subscriber buffer full, dropping notification", map[string]interface{}{
					"channel": channel,
				})
			}
		}
	}()

	return sub, nil
}

// Diagnostics holds backend connectivity details for the health endpoint.
type Diagnostics struct {
	Connected        bool   `json:"connected"`
	Version          string `json:"redis_version,omitempty"`
	UsedMemory       string `json:"used_memory_human,omitempty"`
	ConnectedClients string `json:"connected_clients,omitempty"`
}

// Info collects server diagnostics from Redis INFO.
func (r *Redis) Info(ctx context.Context) Diagnostics {
	raw, err := r.rdb.Info(ctx).Result()
	if err != nil {
		return Diagnostics{Connected: false}
	}

	diag := Diagnostics{Connected: true}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		switch key {
		case "redis_version":
			diag.Version = value
		case "used_memory_human":
			diag.UsedMemory = value
		case "connected_clients":
			diag.ConnectedClients = value
		}
	}
	return diag
}

// Close closes the Redis connection. Safe to call multiple times.
func (r *Redis) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.rdb.Close()
}

// Unwrap returns the underlying go-redis client for advanced operations.
func (r *Redis) Unwrap() *goredis.Client {
	return r.rdb
}
