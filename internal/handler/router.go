package handler

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/voice-agent/internal/handler/speech"
	"github.com/zhouzirui/voice-agent/internal/handler/voice"
	"github.com/zhouzirui/voice-agent/internal/metrics"
	middlewarePkg "github.com/zhouzirui/voice-agent/internal/middleware"
	"github.com/zhouzirui/voice-agent/pkg/utils"
)

// Version is reported by /health; overridden at build time.
var Version = "dev"

// Deps collects what the router wires into handlers.
type Deps struct {
	Processor voice.Processor
	Speech    speech.SpeechService
	Metrics   *metrics.Metrics
	StaticDir string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	started := time.Now()
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "healthy",
			"version": Version,
			"uptime":  int64(time.Since(started).Seconds()),
		})
	})

	if deps.Processor != nil {
		voice.New(deps.Processor, deps.Metrics).RegisterRoutes(r)
	} else {
		r.Post("/process_voice_agent", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondError(w, http.StatusServiceUnavailable, "voice agent unavailable")
		})
	}

	if deps.Speech != nil {
		r.Route("/api", func(api chi.Router) {
			speech.New(deps.Speech).RegisterRoutes(api)
		})
	}

	if deps.StaticDir != "" {
		if info, err := os.Stat(deps.StaticDir); err == nil && info.IsDir() {
			fs := http.StripPrefix("/static", http.FileServer(http.Dir(deps.StaticDir)))
			r.Handle("/static/*", fs)
		}
	}

	return r
}
