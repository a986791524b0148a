package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit chain.
type Metrics struct {
	EventsLogged    *prometheus.CounterVec
	Verifications   prometheus.Counter
	PersistFailures prometheus.Counter
	QueueDrops      prometheus.Counter
}

// New creates a Metrics instance with all audit metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsLogged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_audit_events_total",
			Help: "Total audit events appended to the chain",
		}, []string{"severity", "outcome"}),

		Verifications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_chain_verifications_total",
			Help: "Total full chain integrity verifications",
		}),

		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_persist_failures_total",
			Help: "Total audit events that failed durable persistence",
		}),

		QueueDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_queue_drops_total",
			Help: "Total audit events dropped from the full persistence queue",
		}),
	}
}

func (m *Metrics) IncrementLogged(severity, outcome string) {
	if m != nil {
		m.EventsLogged.WithLabelValues(severity, outcome).Inc()
	}
}

func (m *Metrics) IncrementVerifications() {
	if m != nil {
		m.Verifications.Inc()
	}
}

func (m *Metrics) IncrementPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.QueueDrops.Inc()
	}
}
