package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/backend"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
)

func TestChannel(t *testing.T) {
	if got := Channel("abc"); got != "webhook_channel:abc" {
		t.Errorf("expected 'webhook_channel:abc', got %q", got)
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(nil, backend.NewMemory(), logger.NewDefault("test"))
	ctx := context.Background()

	sub := bus.Subscribe(ctx, "abc")
	if sub == nil {
		t.Fatal("expected a subscription on the memory tier")
	}
	defer sub.Close()

	bus.Publish(ctx, "abc", "new message")

	select {
	case payload := <-sub.Messages():
		if payload != "new message" {
			t.Errorf("expected 'new message', got %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
}

func TestBus_SessionIsolation(t *testing.T) {
	bus := NewBus(nil, backend.NewMemory(), logger.NewDefault("test"))
	ctx := context.Background()

	subAbc := bus.Subscribe(ctx, "abc")
	defer subAbc.Close()
	subXyz := bus.Subscribe(ctx, "xyz")
	defer subXyz.Close()

	bus.Publish(ctx, "xyz", "for-xyz")

	select {
	case payload := <-subXyz.Messages():
		if payload != "for-xyz" {
			t.Errorf("expected 'for-xyz', got %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("xyz subscriber received nothing")
	}

	select {
	case payload := <-subAbc.Messages():
		t.Errorf("abc subscriber must not receive xyz traffic, got %q", payload)
	default:
	}
}

func TestBus_DegradedWithoutShared(t *testing.T) {
	bus := NewBus(nil, backend.NewMemory(), logger.NewDefault("test"))

	if !bus.Degraded(context.Background()) {
		t.Error("expected degraded mode without a shared tier")
	}
}

func TestBus_DegradedTracksConnectivity(t *testing.T) {
	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	shared := backend.NewRedisFromClient(client, logger.NewDefault("test"))
	t.Cleanup(func() { _ = shared.Close() })

	bus := NewBus(shared, backend.NewMemory(), logger.NewDefault("test"))
	ctx := context.Background()

	if bus.Degraded(ctx) {
		t.Error("expected full mode while the shared tier is reachable")
	}

	mini.Close()

	if !bus.Degraded(ctx) {
		t.Error("expected degraded mode after losing the shared tier")
	}
}
