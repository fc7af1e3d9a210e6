// Package metrics exposes Prometheus counters for the engine's decisions.
// Every method is safe on a nil *Metrics so services can run without them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contract engine.
type Metrics struct {
	// Validity badges computed, by state
	ValidityEvaluations *prometheus.CounterVec

	// Approval attempts by outcome (approved, rejected)
	Approvals *prometheus.CounterVec

	// Benefit assignment writes by kind, operation and outcome
	BenefitWrites *prometheus.CounterVec

	// Multi-step writes that stopped halfway
	PartialFailures *prometheus.CounterVec

	// Annual parameter lookups that did not hit an exact year
	ParameterFallbacks *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry so that
// repeated construction does not panic on duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ValidityEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contract_engine_validity_evaluations_total",
			Help: "Contract validity states computed, by state",
		}, []string{"state"}),

		Approvals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contract_engine_approvals_total",
			Help: "Contract approval attempts by outcome",
		}, []string{"outcome"}),

		BenefitWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contract_engine_benefit_writes_total",
			Help: "Benefit assignment writes by kind, operation and outcome",
		}, []string{"kind", "operation", "outcome"}),

		PartialFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contract_engine_partial_failures_total",
			Help: "Multi-step writes that persisted their first step only",
		}, []string{"operation"}),

		ParameterFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contract_engine_parameter_fallbacks_total",
			Help: "Annual parameter resolutions served by a fallback, by type and source",
		}, []string{"type", "source"}),
	}
}

func (m *Metrics) IncValidity(state string) {
	if m != nil {
		m.ValidityEvaluations.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) IncApproval(outcome string) {
	if m != nil {
		m.Approvals.WithLabelValues(outcome).Inc()
	}
}

// IncBenefitWrite records an assign, change or close attempt.
func (m *Metrics) IncBenefitWrite(kind, operation, outcome string) {
	if m != nil {
		m.BenefitWrites.WithLabelValues(kind, operation, outcome).Inc()
	}
}

func (m *Metrics) IncPartialFailure(operation string) {
	if m != nil {
		m.PartialFailures.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) IncParameterFallback(paramType, source string) {
	if m != nil {
		m.ParameterFallbacks.WithLabelValues(paramType, source).Inc()
	}
}
