package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhouzirui/voice-agent/internal/metrics"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

type stubProcessor struct{}

func (stubProcessor) Process(context.Context, *speech.VoiceAgentRequest) (*speech.VoiceAgentResponse, error) {
	return &speech.VoiceAgentResponse{AudioData: speech.AudioBytes{1}}, nil
}

func TestRouterHealth(t *testing.T) {
	r := NewRouter(Deps{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"healthy"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestRouterWithoutProcessor(t *testing.T) {
	r := NewRouter(Deps{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/process_voice_agent", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRouterMetricsAndCORS(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r := NewRouter(Deps{Processor: stubProcessor{}, Metrics: m})

	req := httptest.NewRequest(http.MethodOptions, "/process_voice_agent", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "voice_agent_http_requests_total") {
		t.Fatalf("metrics output missing http counter:\n%s", rr.Body.String())
	}
}

func TestRouterServesStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('hi')"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRouter(Deps{StaticDir: dir})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "hi") {
		t.Fatalf("static response: %d %s", rr.Code, rr.Body.String())
	}

	r = NewRouter(Deps{StaticDir: filepath.Join(dir, "missing")})
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing static dir should 404, got %d", rr.Code)
	}
}
