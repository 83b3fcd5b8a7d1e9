package webhook

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/broadcast"
	apperrors "github.com/BIFROTEK-com/vapi-demo-coolify/internal/errors"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/queue"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/session"
)

// Ingress is the webhook entry point: validate, append, publish.
type Ingress struct {
	sessions *session.Store
	queue    *queue.Store
	bus      *broadcast.Bus
	validate *validator.Validate
	log      *logger.Logger
}

// NewIngress creates a webhook ingress.
func NewIngress(sessions *session.Store, q *queue.Store, bus *broadcast.Bus, log *logger.Logger) *Ingress {
	return &Ingress{
		sessions: sessions,
		queue:    q,
		bus:      bus,
		validate: validator.New(),
		log:      log.WithComponent("webhook"),
	}
}

// Ingest routes one inbound message. A non-empty sessionID scopes the
// message to that session only; an empty sessionID broadcasts it to
// every currently registered session. Returns the session identifiers
// the message was delivered to.
func (i *Ingress) Ingest(ctx context.Context, sessionID string, msg queue.Message) ([]string, error) {
	if msg.Source == "" {
		msg.Source = "webhook"
	}
	if err := i.validate.Struct(msg); err != nil {
		return nil, apperrors.InvalidInput("message", "role must be user, assistant or system and content must be non-empty").WithCause(err)
	}

	if sessionID != "" {
		i.deliver(ctx, sessionID, msg)
		return []string{sessionID}, nil
	}

	// Unscoped ingestion fans out to all registered sessions.
	ids := i.sessions.List(ctx)
	for _, id := range ids {
		i.deliver(ctx, id, msg)
	}
	i.log.Debug("Unscoped webhook broadcast", map[string]interface{}{
		"sessions": len(ids),
	})
	return ids, nil
}

// deliver appends to the durable queue first, then notifies with the
// full stamped message as JSON; a subscriber that misses the
// notification still finds the message on its next poll.
func (i *Ingress) deliver(ctx context.Context, sessionID string, msg queue.Message) {
	stamped, tier := i.queue.Append(ctx, sessionID, msg)
	if payload, err := json.Marshal(stamped); err == nil {
		i.bus.Publish(ctx, sessionID, string(payload))
	}

	i.log.Debug("Webhook message ingested", map[string]interface{}{
		logger.FieldSessionID: sessionID,
		logger.FieldStorage:   string(tier),
		"role":                stamped.Role,
	})
}
