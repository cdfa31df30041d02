package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the chat gateway.
type Metrics struct {
	RequestTotal         *prometheus.CounterVec
	RequestDurationMs    *prometheus.HistogramVec
	TokensTotal          *prometheus.CounterVec
	PromptSourceTotal    *prometheus.CounterVec
	StreamFragmentsTotal *prometheus.CounterVec
	RateLimitHitTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "moch_request_total",
			Help: "Total number of chat requests processed by the gateway.",
		}, []string{"endpoint", "model", "status"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moch_request_duration_ms",
			Help:    "Request duration in milliseconds, including provider latency.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"endpoint", "model"}),

		TokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "moch_tokens_total",
			Help: "Total tokens reported by the model provider.",
		}, []string{"model", "direction"}),

		PromptSourceTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "moch_prompt_source_total",
			Help: "Where each prompt artifact was resolved from (remote, local, default).",
		}, []string{"artifact", "source"}),

		StreamFragmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "moch_stream_fragments_total",
			Help: "Total streamed text fragments forwarded to clients.",
		}, []string{"model"}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "moch_rate_limit_hit_total",
			Help: "Total requests rejected by rate limiting.",
		}, []string{"client"}),
	}
}

// RequestLabels holds the label values for recording a completed request.
type RequestLabels struct {
	Endpoint     string
	Model        string
	Status       string
	DurationMs   float64
	InputTokens  int
	OutputTokens int
}

// RecordRequest records metrics for a completed request.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	m.RequestTotal.WithLabelValues(labels.Endpoint, labels.Model, labels.Status).Inc()
	m.RequestDurationMs.WithLabelValues(labels.Endpoint, labels.Model).Observe(labels.DurationMs)

	if labels.InputTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "input").Add(float64(labels.InputTokens))
	}
	if labels.OutputTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "output").Add(float64(labels.OutputTokens))
	}
}

// RecordPromptSource records which source satisfied an artifact fetch.
func (m *Metrics) RecordPromptSource(artifact, source string) {
	m.PromptSourceTotal.WithLabelValues(artifact, source).Inc()
}

// RecordStreamFragment counts one forwarded stream fragment.
func (m *Metrics) RecordStreamFragment(model string) {
	m.StreamFragmentsTotal.WithLabelValues(model).Inc()
}

// RecordRateLimitHit records a rate-limited request.
func (m *Metrics) RecordRateLimitHit(client string) {
	m.RateLimitHitTotal.WithLabelValues(client).Inc()
}
