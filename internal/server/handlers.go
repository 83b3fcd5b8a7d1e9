package server

import (
	"github.com/gin-gonic/gin"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/backend"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/broadcast"
	apperrors "github.com/BIFROTEK-com/vapi-demo-coolify/internal/errors"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/queue"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/server/endpoint"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/session"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/stream"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/webhook"
)

// Handlers bundles the route dependencies.
type Handlers struct {
	ServiceName string
	Sessions    *session.Store
	Queue       *queue.Store
	Bus         *broadcast.Bus
	Ingress     *webhook.Ingress
	StreamCfg   stream.Config
	Checker     endpoint.HealthChecker
	Log         *logger.Logger
}

// RegisterRoutes mounts all routes on the engine.
func RegisterRoutes(engine *gin.Engine, h Handlers) {
	engine.GET("/health", endpoint.Health(h.ServiceName, h.Checker))
	engine.GET("/ready", endpoint.Readiness(h.ServiceName, h.Checker))

	api := engine.Group("/api")
	api.POST("/register-session", h.registerSession)
	api.GET("/session/:id", h.getSession)
	api.DELETE("/session/:id", h.deleteSession)
	api.GET("/session-stream/:id", stream.Handler(h.Queue, h.Bus, h.StreamCfg, h.Log))

	engine.POST("/webhook", h.handleWebhook)
}

// registerSessionRequest carries the session identifier plus optional
// personalization fields.
type registerSessionRequest struct {
	SessionID       string `json:"sessionId"`
	Domain          string `json:"domain"`
	DisplayName     string `json:"displayName"`
	Email           string `json:"email"`
	CompanyName     string `json:"companyName"`
	ContactPhone    string `json:"contactPhone"`
	ContactWhatsapp string `json:"contactWhatsapp"`
}

func (r *registerSessionRequest) fields() map[string]string {
	fields := make(map[string]string)
	for key, value := range map[string]string{
		"domain":           r.Domain,
		"display_name":     r.DisplayName,
		"email":            r.Email,
		"company_name":     r.CompanyName,
		"contact_phone":    r.ContactPhone,
		"contact_whatsapp": r.ContactWhatsapp,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

type registerSessionResponse struct {
	Session *session.Session `json:"session"`
	Storage backend.Tier     `json:"storage"`
}

func (h Handlers) registerSession(c *gin.Context) {
	var req registerSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", "malformed JSON payload").WithCause(err))
		return
	}
	if req.SessionID == "" {
		RespondWithError(c, apperrors.MissingField("sessionId"))
		return
	}

	record, tier := h.Sessions.Register(c.Request.Context(), req.SessionID, req.fields())
	RespondOK(c, registerSessionResponse{Session: record, Storage: tier})
}

func (h Handlers) getSession(c *gin.Context) {
	id := c.Param("id")

	record, err := h.Sessions.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if record == nil {
		RespondWithError(c, apperrors.NotFound("session", id))
		return
	}
	RespondOK(c, record)
}

func (h Handlers) deleteSession(c *gin.Context) {
	h.Sessions.Delete(c.Request.Context(), c.Param("id"))
	RespondNoContent(c)
}

// webhookRequest is the inbound event payload. SessionID absent means
// broadcast to all currently registered sessions.
type webhookRequest struct {
	SessionID string `json:"sessionId"`
	Message   *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

type webhookResponse struct {
	Status    string   `json:"status"`
	Delivered int      `json:"delivered"`
	Sessions  []string `json:"sessions,omitempty"`
}

func (h Handlers) handleWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", "malformed JSON payload").WithCause(err))
		return
	}
	if req.Message == nil {
		RespondWithError(c, apperrors.MissingField("message"))
		return
	}

	msg := queue.Message{
		Role:    req.Message.Role,
		Content: req.Message.Content,
	}
	delivered, err := h.Ingress.Ingest(c.Request.Context(), req.SessionID, msg)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	RespondOK(c, webhookResponse{
		Status:    "success",
		Delivered: len(delivered),
		Sessions:  delivered,
	})
}
