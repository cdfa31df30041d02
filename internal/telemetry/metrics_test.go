package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	// Use fresh collectors to avoid polluting the default registry.
	m := &Metrics{
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_moch_request_total",
		}, []string{"endpoint", "model", "status"}),
		RequestDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "test_moch_request_duration_ms",
			Buckets: []float64{100, 500, 1000},
		}, []string{"endpoint", "model"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_moch_tokens_total",
		}, []string{"model", "direction"}),
	}

	m.RecordRequest(RequestLabels{
		Endpoint:     "chat",
		Model:        "anthropic.claude-v2",
		Status:       "200",
		DurationMs:   250,
		InputTokens:  10,
		OutputTokens: 20,
	})

	got := testutil.ToFloat64(m.RequestTotal.WithLabelValues("chat", "anthropic.claude-v2", "200"))
	if got != 1 {
		t.Errorf("expected request count 1, got %g", got)
	}
	in := testutil.ToFloat64(m.TokensTotal.WithLabelValues("anthropic.claude-v2", "input"))
	if in != 10 {
		t.Errorf("expected 10 input tokens, got %g", in)
	}
	out := testutil.ToFloat64(m.TokensTotal.WithLabelValues("anthropic.claude-v2", "output"))
	if out != 20 {
		t.Errorf("expected 20 output tokens, got %g", out)
	}
}

func TestRecordRequest_ZeroTokensNotCounted(t *testing.T) {
	m := &Metrics{
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_moch_request_total_zero",
		}, []string{"endpoint", "model", "status"}),
		RequestDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "test_moch_request_duration_ms_zero",
			Buckets: []float64{100},
		}, []string{"endpoint", "model"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_moch_tokens_total_zero",
		}, []string{"model", "direction"}),
	}

	m.RecordRequest(RequestLabels{Endpoint: "chat", Model: "other-model", Status: "200"})

	if got := testutil.ToFloat64(m.TokensTotal.WithLabelValues("other-model", "input")); got != 0 {
		t.Errorf("expected no input tokens recorded, got %g", got)
	}
}

func TestRecordPromptSource(t *testing.T) {
	m := &Metrics{
		PromptSourceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_moch_prompt_source_total",
		}, []string{"artifact", "source"}),
	}
	m.RecordPromptSource("system_prompt", "remote")
	m.RecordPromptSource("system_prompt", "remote")
	m.RecordPromptSource("knowledge_base", "local")

	if got := testutil.ToFloat64(m.PromptSourceTotal.WithLabelValues("system_prompt", "remote")); got != 2 {
		t.Errorf("expected 2 remote hits, got %g", got)
	}
	if got := testutil.ToFloat64(m.PromptSourceTotal.WithLabelValues("knowledge_base", "local")); got != 1 {
		t.Errorf("expected 1 local hit, got %g", got)
	}
}
