package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	WSWriteErrors     *prometheus.CounterVec
	NarrationEvents   *prometheus.CounterVec
	ProviderFallbacks *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	SynthesisLatency  *prometheus.HistogramVec
	TurnLatency       prometheus.Histogram

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active conversation sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		WSWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_write_errors_total",
			Help:      "WebSocket write failures by kind.",
		}, []string{"kind"}),
		NarrationEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narration_events_total",
			Help:      "Narration lifecycle events by type.",
		}, []string{"event"}),
		ProviderFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Synthesis provider fallbacks by abandoned tier and reason.",
		}, []string{"tier", "reason"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		SynthesisLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_ms",
			Help:      "Speech synthesis latency in milliseconds by provider.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000},
		}, []string{"provider"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "Latency from user message to assistant reply in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		stages: newStageWindow(256),
	}
}

// CountNarration is nil-safe so callers built without metrics stay quiet.
func (m *Metrics) CountNarration(event string) {
	if m == nil {
		return
	}
	m.NarrationEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) CountSession(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
	switch event {
	case "created":
		m.ActiveSessions.Inc()
	case "ended", "expired":
		m.ActiveSessions.Dec()
	}
}

func (m *Metrics) CountWS(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) CountWSWriteError(kind string) {
	if m == nil {
		return
	}
	m.WSWriteErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) CountFallback(tier, reason string) {
	if m == nil {
		return
	}
	m.ProviderFallbacks.WithLabelValues(tier, reason).Inc()
}

func (m *Metrics) CountProviderError(provider, code string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, code).Inc()
}

func (m *Metrics) ObserveSynthesis(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisLatency.WithLabelValues(provider).Observe(float64(d.Milliseconds()))
	m.stages.Observe("synthesis_"+provider, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTurn(d time.Duration) {
	if m == nil {
		return
	}
	m.TurnLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe("turn_total", float64(d.Milliseconds()))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

func (m *Metrics) CountIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

// StageSnapshot returns windowed latency percentiles for the perf endpoint.
func (m *Metrics) StageSnapshot() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.stages.Snapshot()
}

func (m *Metrics) ResetStages() {
	if m == nil {
		return
	}
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
