package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// VerifyMetrics counts license verification decisions and device registrations.
// Labels stay low-cardinality: the outcome set is fixed and games come from a
// small catalog.
type VerifyMetrics struct {
	decisions     *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

// NewVerifyMetrics registers verification instruments on the default registry.
func NewVerifyMetrics() *VerifyMetrics {
	return &VerifyMetrics{
		decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keymaster_verify_decisions_total",
			Help: "License verification decisions by outcome and game.",
		}, []string{"outcome", "game"}),
		registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keymaster_device_registrations_total",
			Help: "New device bindings created by the verification endpoint.",
		}, []string{"game"}),
	}
}

// RecordDecision counts one verification outcome.
func (m *VerifyMetrics) RecordDecision(outcome, game string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome, game).Inc()
}

// RecordRegistration counts one new device binding.
func (m *VerifyMetrics) RecordRegistration(game string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(game).Inc()
}
