package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the security monitor.
type Metrics struct {
	// Alerts raised by severity and category
	Alerts *prometheus.CounterVec

	// Latest computed security score
	SecurityScore prometheus.Gauge

	// Duration of one metrics collection cycle
	CollectionDuration prometheus.Histogram

	// Collection cycles that hit a collaborator failure
	CollectionFailures prometheus.Counter
}

// New creates a Metrics instance with all monitor metrics registered.
func New() *Metrics {
	return &Metrics{
		Alerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_monitor_alerts_total",
			Help: "Total security alerts raised by severity and category",
		}, []string{"severity", "category"}),

		SecurityScore: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_monitor_security_score",
			Help: "Latest computed security score (0-100)",
		}),

		CollectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_monitor_collection_duration_seconds",
			Help:    "Duration of one security metrics collection cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),

		CollectionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_monitor_collection_failures_total",
			Help: "Collection cycles degraded by a collaborator failure",
		}),
	}
}

// IncrementAlert records one raised alert.
func (m *Metrics) IncrementAlert(severity, category string) {
	if m != nil {
		m.Alerts.WithLabelValues(severity, category).Inc()
	}
}

// SetSecurityScore publishes the latest score.
func (m *Metrics) SetSecurityScore(score float64) {
	if m != nil {
		m.SecurityScore.Set(score)
	}
}

// ObserveCollection records one collection cycle's duration.
func (m *Metrics) ObserveCollection(d time.Duration) {
	if m != nil {
		m.CollectionDuration.Observe(d.Seconds())
	}
}

// IncrementCollectionFailures counts a degraded collection cycle.
func (m *Metrics) IncrementCollectionFailures() {
	if m != nil {
		m.CollectionFailures.Inc()
	}
}
