package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	r := NewRedisFromClient(client, logger.NewDefault("test"))
	t.Cleanup(func() { _ = r.Close() })
	return r, mini
}

func TestRedis_SetGet(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	if err := r.Set(ctx, "session:abc", "v", time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	val, err := r.Get(ctx, "session:abc")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if val != "v" {
		t.Errorf("expected 'v', got %q", val)
	}
}

func TestRedis_GetMissing(t *testing.T) {
	r, _ := newTestRedis(t)

	_, err := r.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedis_TTLExpiry(t *testing.T) {
	r, mini := newTestRedis(t)
	ctx := context.Background()

	_ = r.Set(ctx, "session:abc", "v", time.Hour)
	_ = r.Append(ctx, "webhook_messages:abc", "m1", time.Hour)

	mini.FastForward(time.Hour + time.Second)

	if _, err := r.Get(ctx, "session:abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired session to be absent, got %v", err)
	}
	items, err := r.Range(ctx, "webhook_messages:abc")
	if err != nil {
		t.Fatalf("range failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected expired queue to be empty, got %v", items)
	}
}

func TestRedis_AppendRangeOrder(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	for _, v := range []string{"m1", "m2", "m3"} {
		if err := r.Append(ctx, "q", v, time.Hour); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	items, err := r.Range(ctx, "q")
	if err != nil {
		t.Fatalf("range failed: %v", err)
	}
	want := []string{"m1", "m2", "m3"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, v := range want {
		if items[i] != v {
			t.Errorf("position %d: expected %q, got %q", i, v, items[i])
		}
	}
}

func TestRedis_TrimDropsOldest(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	for _, v := range []string{"m1", "m2", "m3", "m4"} {
		_ = r.Append(ctx, "q", v, time.Hour)
	}
	if err := r.Trim(ctx, "q", 2); err != nil {
		t.Fatalf("trim failed: %v", err)
	}

	items, _ := r.Range(ctx, "q")
	if len(items) != 2 || items[0] != "m3" || items[1] != "m4" {
		t.Errorf("expected newest two entries, got %v", items)
	}
}

func TestRedis_Keys(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	_ = r.Set(ctx, "session:abc", "a", time.Hour)
	_ = r.Set(ctx, "session:xyz", "b", time.Hour)
	_ = r.Set(ctx, "other:1", "c", time.Hour)

	keys, err := r.Keys(ctx, "session:*")
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 session keys, got %v", keys)
	}
}

func TestRedis_PubSub(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	sub, err := r.Subscribe(ctx, "webhook_channel:abc")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	if err := r.Publish(ctx, "webhook_channel:abc", "hello"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case payload := <-sub.Messages():
		if payload != "hello" {
			t.Errorf("expected 'hello', got %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no payload received")
	}
}

func TestRedis_AvailableReflectsConnectivity(t *testing.T) {
	r, mini := newTestRedis(t)
	ctx := context.Background()

	if !r.Available(ctx) {
		t.Fatal("expected backend to be available")
	}

	mini.Close()

	if r.Available(ctx) {
		t.Error("expected backend to be unavailable after server stop")
	}
}
