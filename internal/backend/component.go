package backend

import (
	"context"
	"fmt"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/component"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
)

// Component wraps the Redis tier for lifecycle management. Start never
// fails the application when Redis is down: the service comes up in
// degraded single-worker mode and picks the backend up on recovery.
type Component struct {
	client *Redis
	cfg    Config
	log    *logger.Logger
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a Redis backend component. The client is
// constructed immediately (no dial happens yet) so stores can be wired
// before Start; a nil client means the shared tier is disabled.
func NewComponent(cfg Config, log *logger.Logger) (*Component, error) {
	c := &Component{
		cfg: cfg,
		log: log.WithComponent("backend"),
	}
	if cfg.Enabled {
		client, err := NewRedis(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
		c.client = client
	}
	return c, nil
}

// Client returns the shared-tier store, or nil when Redis is disabled.
func (c *Component) Client() *Redis {
	return c.client
}

// Name returns the component name.
func (c *Component) Name() string { return "backend" }

// Start attempts an initial ping. Connectivity failure is a normal,
// expected outcome, not a startup error.
func (c *Component) Start(ctx context.Context) error {
	if c.client == nil {
		c.log.Info("Redis disabled, running in-memory only (single-worker mode)")
		return nil
	}

	if err := c.client.Ping(ctx); err != nil {
		c.log.Warn("Redis unreachable, starting in degraded single-worker mode", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	c.log.Info("Connected to Redis", map[string]interface{}{
		"addr": c.cfg.Addr,
		"db":   c.cfg.DB,
	})
	return nil
}

// Stop closes the Redis connection.
func (c *Component) Stop(_ context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health reports connectivity plus server diagnostics. An unreachable
// backend is degraded, not unhealthy: the in-memory tier keeps the
// service functional on this worker.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.client == nil || !c.client.Available(ctx) {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusDegraded,
			Message: "redis unavailable: in-memory tier only, no cross-worker fan-out",
			Details: map[string]interface{}{
				"connected": false,
				"mode":      "degraded-single-worker",
			},
		}
	}

	diag := c.client.Info(ctx)
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
		Details: map[string]interface{}{
			"connected":         true,
			"redis_version":     diag.Version,
			"used_memory_human": diag.UsedMemory,
			"connected_clients": diag.ConnectedClients,
		},
	}
}
