package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages reported in the stage label.
const (
	StageDecode     = "decode"
	StageConvert    = "convert"
	StageTranscribe = "transcribe"
	StageRespond    = "respond"
	StageSynthesize = "synthesize"
)

// Metrics contains the Prometheus collectors of the voice agent server
type Metrics struct {
	registry prometheus.Gatherer

	// Voice agent pipeline metrics
	Requests       prometheus.Counter
	Failures       *prometheus.CounterVec
	ProcessingTime prometheus.Histogram
	StageDuration  *prometheus.HistogramVec

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all collectors on reg, which also serves /metrics.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Requests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_agent_requests_total",
			Help: "Total number of voice agent requests received",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_agent_failures_total",
			Help: "Total number of failed voice agent requests by stage",
		}, []string{"stage"}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_agent_processing_seconds",
			Help:    "End to end processing time of a voice agent request",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_agent_stage_seconds",
			Help:    "Processing time per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"stage"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_agent_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
	}
}

// ObserveStage records how long one pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordFailure counts a request that failed in stage.
func (m *Metrics) RecordFailure(stage string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by chi route pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
