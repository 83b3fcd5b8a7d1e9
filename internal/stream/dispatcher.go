package stream

import (
	"context"
	"time"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/broadcast"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/queue"
)

// Sink receives dispatched messages. The SSE handler implements it
// over the HTTP response; tests implement it over a slice.
type Sink interface {
	// Send delivers one message to the client. An error means the
	// connection is gone and the dispatch loop must stop.
	Send(msg queue.Message) error

	// KeepAlive signals connection liveness between messages.
	KeepAlive() error
}

// Config holds per-connection dispatch settings.
type Config struct {
	// PollInterval bounds how stale a connection can go when a
	// broadcast is missed or unavailable.
	PollInterval time.Duration

	// KeepAliveInterval paces liveness signals; must stay below
	// typical proxy idle timeouts.
	KeepAliveInterval time.Duration
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = 30 * time.Second
	}
}

// Dispatcher forwards a session's queued messages to one client
// connection, tracking delivery with a connection-local cursor. The
// last delivered message is remembered so the cursor can be realigned
// when the queue is trimmed or expires underneath the connection.
type Dispatcher struct {
	sessionID string
	queue     *queue.Store
	bus       *broadcast.Bus
	cfg       Config
	log       *logger.Logger
	cursor    int
	last      queue.Message
}

// NewDispatcher creates a dispatcher for one client connection.
func NewDispatcher(sessionID string, q *queue.Store, bus *broadcast.Bus, cfg Config, log *logger.Logger) *Dispatcher {
	cfg.ApplyDefaults()
	return &Dispatcher{
		sessionID: sessionID,
		queue:     q,
		bus:       bus,
		cfg:       cfg,
		log: log.WithComponent("stream").WithFields(map[string]interface{}{
			logger.FieldSessionID: sessionID,
		}),
	}
}

// Run drives the dispatch loop until ctx is canceled or the sink
// fails. It flushes the current backlog immediately, then waits on the
// broadcast subscription and the poll ticker, whichever fires first.
// Teardown is bounded by one poll interval and always releases the
// subscription; queue contents are untouched, TTL governs them.
func (d *Dispatcher) Run(ctx context.Context, sink Sink) error {
	if err := d.forward(ctx, sink); err != nil {
		return err
	}

	var notify <-chan string
	if sub := d.bus.Subscribe(ctx, d.sessionID); sub != nil {
		defer sub.Close()
		notify = sub.Messages()
	}

	poll := time.NewTicker(d.cfg.PollInterval)
	defer poll.Stop()
	keepAlive := time.NewTicker(d.cfg.KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Stream closed", map[string]interface{}{
				"reason": ctx.Err().Error(),
			})
			return nil

		case _, ok := <-notify:
			if !ok {
				// Subscription ended underneath us; the poll keeps
				// delivery alive.
				notify = nil
				continue
			}
			if err := d.forward(ctx, sink); err != nil {
				return err
			}

		case <-poll.C:
			if err := d.forward(ctx, sink); err != nil {
				return err
			}

		case <-keepAlive.C:
			if err := sink.KeepAlive(); err != nil {
				return err
			}
		}
	}
}

// forward re-fetches the queue and sends everything past the cursor,
// preserving append order.
func (d *Dispatcher) forward(ctx context.Context, sink Sink) error {
	msgs := d.queue.Peek(ctx, d.sessionID)
	d.realign(msgs)
	for _, msg := range msgs[d.cursor:] {
		if err := sink.Send(msg); err != nil {
			return err
		}
		d.last = msg
	}
	d.cursor = len(msgs)
	return nil
}

// realign adjusts the cursor after a queue trim or expiry. The cursor
// is trusted only while the entry just delivered still sits at
// cursor-1; a capped queue at steady state keeps its length constant
// while older entries slide out the front, so a plain length check
// cannot detect the shift. When the last delivered message moved,
// rewind to just past its new position; when it is gone entirely,
// replay from the start. Re-delivery is acceptable, lost messages are
// not.
func (d *Dispatcher) realign(msgs []queue.Message) {
	if d.cursor == 0 {
		return
	}
	if d.cursor <= len(msgs) && sameMessage(msgs[d.cursor-1], d.last) {
		return
	}

	// Trim only drops from the front, so the last delivered entry can
	// only have moved to a lower index. Searching downward from the old
	// position avoids matching a later duplicate.
	start := d.cursor - 1
	if start > len(msgs)-1 {
		start = len(msgs) - 1
	}
	for i := start; i >= 0; i-- {
		if sameMessage(msgs[i], d.last) {
			d.cursor = i + 1
			return
		}
	}
	d.cursor = 0
}

func sameMessage(a, b queue.Message) bool {
	return a.Role == b.Role &&
		a.Content == b.Content &&
		a.Source == b.Source &&
		a.Timestamp.Equal(b.Timestamp)
}
