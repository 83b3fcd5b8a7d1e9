package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/broadcast"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/queue"
)

// ConnectedEvent is the first event sent on a new stream.
type ConnectedEvent struct {
	SessionID string `json:"session_id"`
}

// sseSink writes dispatched messages to an SSE response.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(msg queue.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) KeepAlive() error {
	// SSE spec: lines starting with : are comments. Keeps the
	// connection alive through proxies and load balancers.
	if _, err := fmt.Fprintf(s.w, ": keepalive %d\n\n", time.Now().Unix()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Handler returns the SSE endpoint serving one session's message
// stream. Each event carries a JSON message object {role, content,
// timestamp, source}.
func Handler(q *queue.Store, bus *broadcast.Bus, cfg Config, baseLog *logger.Logger) gin.HandlerFunc {
	log := baseLog.WithComponent("stream")

	return func(c *gin.Context) {
		sessionID := c.Param("id")

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			log.Error("Streaming not supported", map[string]interface{}{
				logger.FieldSessionID: sessionID,
			})
			c.String(http.StatusInternalServerError, "streaming not supported")
			return
		}

		// SSE connections are long-lived and must not be cut by the
		// server's write timeout.
		rc := http.NewResponseController(c.Writer)
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			log.Warn("Could not disable write deadline", map[string]interface{}{
				logger.FieldSessionID: sessionID,
				logger.FieldError:     err.Error(),
			})
		}

		header := c.Writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no") // disable nginx buffering
		c.Writer.WriteHeader(http.StatusOK)

		connected, _ := json.Marshal(ConnectedEvent{SessionID: sessionID})
		_, _ = fmt.Fprintf(c.Writer, "event: connected\ndata: %s\n\n", connected)
		flusher.Flush()

		log.Debug("Client connected", map[string]interface{}{
			logger.FieldSessionID: sessionID,
			"remote_addr":         c.Request.RemoteAddr,
		})

		d := NewDispatcher(sessionID, q, bus, cfg, baseLog)
		if err := d.Run(c.Request.Context(), &sseSink{w: c.Writer, flusher: flusher}); err != nil {
			// Client disconnect mid-delivery; log, never escalate.
			log.Debug("Stream ended", map[string]interface{}{
				logger.FieldSessionID: sessionID,
				logger.FieldError:     err.Error(),
			})
		}
	}
}
