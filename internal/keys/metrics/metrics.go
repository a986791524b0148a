package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the key management module.
type Metrics struct {
	KeysGenerated prometheus.Counter
	Rotations     prometheus.Counter
	AuthFailures  prometheus.Counter
}

// New creates a Metrics instance with all key management metrics registered.
func New() *Metrics {
	return &Metrics{
		KeysGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_keys_generated_total",
			Help: "Total number of encryption keys generated",
		}),
		Rotations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_keys_rotations_total",
			Help: "Total number of key rotations",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_keys_auth_failures_total",
			Help: "Total number of ciphertext authentication failures",
		}),
	}
}

func (m *Metrics) IncrementGenerated() {
	if m != nil {
		m.KeysGenerated.Inc()
	}
}

func (m *Metrics) IncrementRotations() {
	if m != nil {
		m.Rotations.Inc()
	}
}

func (m *Metrics) IncrementAuthFailures() {
	if m != nil {
		m.AuthFailures.Inc()
	}
}
