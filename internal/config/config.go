package config

import (
	"fmt"
	"time"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/backend"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/server"
)

// SessionConfig holds session, queue, and stream settings.
type SessionConfig struct {
	// TTL is the time-to-live in seconds for session records and
	// message queues.
	TTL int `mapstructure:"ttl"`

	// QueueMaxLength caps each session's message queue, dropping the
	// oldest entries on overflow. 0 means unbounded within the TTL.
	QueueMaxLength int `mapstructure:"queue_max_length"`

	// StreamPollInterval is the dispatcher's fallback poll period (e.g. "1s").
	StreamPollInterval string `mapstructure:"stream_poll_interval"`

	// StreamKeepAlive is the SSE keep-alive period (e.g. "30s").
	StreamKeepAlive string `mapstructure:"stream_keep_alive"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *SessionConfig) ApplyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 3600
	}
	if c.StreamPollInterval == "" {
		c.StreamPollInterval = "1s"
	}
	if c.StreamKeepAlive == "" {
		c.StreamKeepAlive = "30s"
	}
}

// Validate checks that durations are parseable.
func (c *SessionConfig) Validate() error {
	if _, err := time.ParseDuration(c.StreamPollInterval); err != nil {
		return fmt.Errorf("invalid stream_poll_interval %q: %w", c.StreamPollInterval, err)
	}
	if _, err := time.ParseDuration(c.StreamKeepAlive); err != nil {
		return fmt.Errorf("invalid stream_keep_alive %q: %w", c.StreamKeepAlive, err)
	}
	return nil
}

// TTLDuration returns the TTL as a duration.
func (c *SessionConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// PollInterval returns the parsed stream poll interval.
func (c *SessionConfig) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.StreamPollInterval)
	return d
}

// KeepAlive returns the parsed stream keep-alive interval.
func (c *SessionConfig) KeepAlive() time.Duration {
	d, _ := time.ParseDuration(c.StreamKeepAlive)
	return d
}

// Config is the root service configuration.
type Config struct {
	Service string         `mapstructure:"service"`
	Server  server.Config  `mapstructure:"server"`
	Redis   backend.Config `mapstructure:"redis"`
	Session SessionConfig  `mapstructure:"session"`
	Log     logger.Config  `mapstructure:"log"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	if c.Service == "" {
		c.Service = "vapi-demo"
	}
	c.Server.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Log.ApplyDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
