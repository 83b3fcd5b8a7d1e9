// Command vapi-demo runs the session and webhook broadcasting service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/backend"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/broadcast"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/component"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/config"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/queue"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/server"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/session"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/stream"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/webhook"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Configuration error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	logger.Init(cfg.Log, cfg.Service)
	log := logger.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Startup failed", map[string]interface{}{"error": err.Error()})
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	registry := component.NewRegistry()

	backendComp, err := backend.NewComponent(cfg.Redis, log)
	if err != nil {
		return err
	}
	if err := registry.Register(backendComp); err != nil {
		return err
	}

	var shared backend.Store
	if client := backendComp.Client(); client != nil {
		shared = client
	}
	local := backend.NewMemory()

	ttl := cfg.Session.TTLDuration()
	sessions := session.NewStore(shared, local, ttl, log)
	messages := queue.NewStore(shared, local, ttl, log,
		queue.WithMaxLength(cfg.Session.QueueMaxLength))
	bus := broadcast.NewBus(shared, local, log)
	ingress := webhook.NewIngress(sessions, messages, bus, log)

	srv := server.New(cfg.Server, log)
	server.RegisterRoutes(srv.Engine(), server.Handlers{
		ServiceName: cfg.Service,
		Sessions:    sessions,
		Queue:       messages,
		Bus:         bus,
		Ingress:     ingress,
		StreamCfg: stream.Config{
			PollInterval:      cfg.Session.PollInterval(),
			KeepAliveInterval: cfg.Session.KeepAlive(),
		},
		Checker: registry.HealthAll,
		Log:     log,
	})
	if err := registry.Register(srv); err != nil {
		return err
	}

	if err := registry.StartAll(ctx); err != nil {
		return err
	}

	log.Info("Service started", map[string]interface{}{
		"addr":        srv.Addr(),
		"session_ttl": cfg.Session.TTL,
	})

	<-ctx.Done()
	log.Info("Shutting down")
	return registry.StopAll(context.Background())
}
