package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trust engine.
type Metrics struct {
	// External signal lookup latencies by source
	SignalLatency *prometheus.HistogramVec

	// Access decisions by effect and risk level
	Decisions *prometheus.CounterVec

	// Distribution of computed overall trust scores
	TrustScore prometheus.Histogram

	// Overall evaluation latency including signal gathering
	EvaluateLatency prometheus.Histogram
}

// New creates a Metrics instance with all trust engine metrics registered.
func New() *Metrics {
	return &Metrics{
		SignalLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_trust_signal_duration_seconds",
			Help:    "Duration of external signal lookups by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "directory", "intel"

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_trust_decisions_total",
			Help: "Total access decisions by effect and risk level",
		}, []string{"effect", "risk_level"}),

		TrustScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_trust_score",
			Help:    "Distribution of computed overall trust scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_trust_evaluate_duration_seconds",
			Help:    "Duration of full access evaluation including signal gathering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveSignalLatency records the duration of one external signal lookup.
func (m *Metrics) ObserveSignalLatency(source string, d time.Duration) {
	if m != nil {
		m.SignalLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementDecision records an access decision.
func (m *Metrics) IncrementDecision(effect, riskLevel string) {
	if m != nil {
		m.Decisions.WithLabelValues(effect, riskLevel).Inc()
	}
}

// ObserveTrustScore records a computed overall score.
func (m *Metrics) ObserveTrustScore(score float64) {
	if m != nil {
		m.TrustScore.Observe(score)
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
