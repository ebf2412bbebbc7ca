package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/locaith-ai/studio/internal/builder"
	"github.com/locaith-ai/studio/internal/log"
)

type fakeGenerator struct {
	chunks []string
}

func (g *fakeGenerator) Stream(ctx context.Context, _ builder.GenerationRequest, onChunk func(context.Context, string) error) error {
	for _, c := range g.chunks {
		if err := onChunk(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger: log.NewNop(),
		Generator: &fakeGenerator{chunks: []string{
			"Analyzing...\n", "[BUILD] step\n", "<!DOCTYPE html><html>ok</html>",
		}},
		SaveWindow:  10 * time.Millisecond,
		DedupWindow: 0,
		IsDev:       true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.workspaces.closeAll(context.Background()) })
	return srv
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServer_ReadyWithoutPool(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestServer_BuildStreamsEvents(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/build",
		strings.NewReader(`{"prompt":"build a landing page"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	for _, event := range []string{"event: message", "event: log", "event: preview", "event: progress", "event: done"} {
		if !strings.Contains(body, event) {
			t.Errorf("stream missing %q", event)
		}
	}
	if !strings.Contains(body, `"percent":100`) {
		t.Error("stream never reached progress 100")
	}
	// The uid cookie is minted on first contact.
	cookies := rec.Result().Cookies()
	found := false
	for _, c := range cookies {
		if c.Name == userCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("no uid cookie set")
	}
}

func TestServer_BuildRejectsEmptyPrompt(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/build", strings.NewReader(`{"prompt":"  "}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestServer_StopWithoutRunIsAccepted(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/build/stop", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestServer_TTSUnconfigured(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tts", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestServer_ProjectRoutesAbsentWithoutStore(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (no store configured)", rec.Code)
	}
}

func TestRateLimit_Exhaustion(t *testing.T) {
	rl := newRateLimiter(0.0001, 2)

	if !rl.allow("10.0.0.1") || !rl.allow("10.0.0.1") {
		t.Fatal("initial burst rejected")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("third request allowed, want exhausted")
	}
	// Other IPs are unaffected.
	if !rl.allow("10.0.0.2") {
		t.Fatal("separate ip rejected")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:1234"
	r.Header.Set("X-Real-IP", "203.0.113.7")

	if got := clientIP(r, false); got != "192.0.2.10" {
		t.Errorf("untrusted proxy ip = %q, want RemoteAddr host", got)
	}
	if got := clientIP(r, true); got != "203.0.113.7" {
		t.Errorf("trusted proxy ip = %q, want X-Real-IP", got)
	}

	r.Header.Set("X-Real-IP", "not-an-ip")
	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if got := clientIP(r, true); got != "198.51.100.4" {
		t.Errorf("xff ip = %q, want first hop", got)
	}
}
