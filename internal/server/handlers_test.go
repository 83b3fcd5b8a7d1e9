package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/backend"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/broadcast"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/component"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/queue"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/session"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/stream"
	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/webhook"
)

func newTestEngine(t *testing.T, checker func(ctx context.Context) []component.Health) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local := backend.NewMemory()
	log := logger.NewDefault("test")
	sessions := session.NewStore(nil, local, time.Hour, log)
	messages := queue.NewStore(nil, local, time.Hour, log)
	bus := broadcast.NewBus(nil, local, log)

	engine := gin.New()
	RegisterRoutes(engine, Handlers{
		ServiceName: "test",
		Sessions:    sessions,
		Queue:       messages,
		Bus:         bus,
		Ingress:     webhook.NewIngress(sessions, messages, bus, log),
		StreamCfg:   stream.Config{PollInterval: 20 * time.Millisecond, KeepAliveInterval: time.Minute},
		Checker:     checker,
		Log:         log,
	})
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("error envelope unmarshal failed: %v (%s)", err, body)
	}
	return envelope.Error.Code
}

func TestRegisterSession_MissingID(t *testing.T) {
	engine := newTestEngine(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/register-session", `{"domain":"example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec.Body.Bytes()); code != "MISSING_FIELD" {
		t.Errorf("expected MISSING_FIELD, got %q", code)
	}
}

func TestRegisterSession_MalformedJSON(t *testing.T) {
	engine := newTestEngine(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/register-session", `{"sessionId":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != "INVALID_INPUT" {
		t.Errorf("expected INVALID_INPUT, got %q", code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	engine := newTestEngine(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/register-session",
		`{"sessionId":"abc","companyName":"ACME","email":"max@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var registered struct {
		Data struct {
			Session struct {
				ID     string            `json:"session_id"`
				Fields map[string]string `json:"fields"`
			} `json:"session"`
			Storage string `json:"storage"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &registered); err != nil {
		t.Fatalf("register response unmarshal failed: %v", err)
	}
	if registered.Data.Session.ID != "abc" {
		t.Errorf("expected id 'abc', got %q", registered.Data.Session.ID)
	}
	if registered.Data.Storage != "memory" {
		t.Errorf("expected memory tier, got %q", registered.Data.Storage)
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/session/abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var fetched struct {
		Data struct {
			Fields map[string]string `json:"fields"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("get response unmarshal failed: %v", err)
	}
	if fetched.Data.Fields["company_name"] != "ACME" {
		t.Errorf("expected stored fields, got %v", fetched.Data.Fields)
	}

	rec = doJSON(t, engine, http.MethodDelete, "/api/session/abc", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/session/abc", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %q", code)
	}
}

func TestDeleteSession_UnknownIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, nil)

	rec := doJSON(t, engine, http.MethodDelete, "/api/session/never-registered", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for unknown session, got %d", rec.Code)
	}
}

func TestWebhook_ScopedDelivery(t *testing.T) {
	engine := newTestEngine(t, nil)

	doJSON(t, engine, http.MethodPost, "/api/register-session", `{"sessionId":"abc"}`)
	doJSON(t, engine, http.MethodPost, "/api/register-session", `{"sessionId":"xyz"}`)

	rec := doJSON(t, engine, http.MethodPost, "/webhook",
		`{"sessionId":"xyz","message":{"role":"assistant","content":"hello"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Status    string   `json:"status"`
			Delivered int      `json:"delivered"`
			Sessions  []string `json:"sessions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("webhook response unmarshal failed: %v", err)
	}
	if resp.Data.Status != "success" || resp.Data.Delivered != 1 {
		t.Errorf("expected one delivery, got %+v", resp.Data)
	}
	if len(resp.Data.Sessions) != 1 || resp.Data.Sessions[0] != "xyz" {
		t.Errorf("expected delivery to xyz, got %v", resp.Data.Sessions)
	}
}

func TestWebhook_UnscopedFanOut(t *testing.T) {
	engine := newTestEngine(t, nil)

	doJSON(t, engine, http.MethodPost, "/api/register-session", `{"sessionId":"abc"}`)
	doJSON(t, engine, http.MethodPost, "/api/register-session", `{"sessionId":"xyz"}`)

	rec := doJSON(t, engine, http.MethodPost, "/webhook",
		`{"message":{"role":"system","content":"maintenance"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Delivered int `json:"delivered"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("webhook response unmarshal failed: %v", err)
	}
	if resp.Data.Delivered != 2 {
		t.Errorf("expected fan-out to 2 sessions, got %d", resp.Data.Delivered)
	}
}

func TestWebhook_MissingMessage(t *testing.T) {
	engine := newTestEngine(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/webhook", `{"sessionId":"abc"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != "MISSING_FIELD" {
		t.Errorf("expected MISSING_FIELD, got %q", code)
	}
}

func TestWebhook_InvalidRole(t *testing.T) {
	engine := newTestEngine(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/webhook",
		`{"sessionId":"abc","message":{"role":"robot","content":"hi"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != "INVALID_INPUT" {
		t.Errorf("expected INVALID_INPUT, got %q", code)
	}
}

func TestHealth_ReportsDegradedBackend(t *testing.T) {
	engine := newTestEngine(t, func(ctx context.Context) []component.Health {
		return []component.Health{{
			Name:    "backend",
			Status:  component.StatusDegraded,
			Message: "redis unreachable, serving from memory",
		}}
	})

	rec := doJSON(t, engine, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded service must still report 200, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("health response unmarshal failed: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("expected degraded status, got %q", body.Status)
	}
}

func TestReady_DegradedStillServes(t *testing.T) {
	engine := newTestEngine(t, func(ctx context.Context) []component.Health {
		return []component.Health{{Name: "backend", Status: component.StatusDegraded}}
	})

	rec := doJSON(t, engine, http.MethodGet, "/ready", "")
	if rec.Code != http.StatusOK {
		t.Errorf("degraded service must stay ready, got %d", rec.Code)
	}
}

func TestSessionStream_SSE(t *testing.T) {
	engine := newTestEngine(t, nil)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	doJSON(t, engine, http.MethodPost, "/api/register-session", `{"sessionId":"abc"}`)
	doJSON(t, engine, http.MethodPost, "/webhook",
		`{"sessionId":"abc","message":{"role":"assistant","content":"queued before connect"}}`)

	resp, err := http.Get(srv.URL + "/api/session-stream/abc")
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", got)
	}

	reader := bufio.NewReader(resp.Body)

	// First frame is the connected event.
	var sawConnected bool
	var data string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream read failed: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "event: connected" {
			sawConnected = true
			continue
		}
		if strings.HasPrefix(line, "data: ") {
			payload := strings.TrimPrefix(line, "data: ")
			if sawConnected && data == "" && strings.Contains(payload, "session_id") {
				// connected event payload
				continue
			}
			data = payload
			break
		}
	}
	if !sawConnected {
		t.Error("expected a connected event first")
	}

	var msg queue.Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		t.Fatalf("message payload unmarshal failed: %v (%s)", err, data)
	}
	if msg.Role != queue.RoleAssistant || msg.Content != "queued before connect" {
		t.Errorf("expected the queued backlog message, got %+v", msg)
	}
}
