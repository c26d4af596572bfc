// Package metrics exposes Prometheus collectors for screening sessions,
// submissions and record persistence.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the screening collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Sessions started by instrument
	SessionsStarted *prometheus.CounterVec

	// Successful step transitions by source and target step
	Transitions *prometheus.CounterVec

	// Refused transitions and mutations by guard code
	GuardViolations *prometheus.CounterVec

	// Finalized submissions by instrument and severity band
	Submissions *prometheus.CounterVec

	// Persistence attempts by target and outcome
	PersistenceAttempts *prometheus.CounterVec

	// Time spent appending a record to its target
	PersistenceDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_sessions_started_total",
			Help: "Total screening sessions started by instrument",
		}, []string{"instrument"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_step_transitions_total",
			Help: "Total step transitions by source and target step",
		}, []string{"from", "to"}),

		GuardViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_guard_violations_total",
			Help: "Total refused operations by guard code",
		}, []string{"code"}),

		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_submissions_total",
			Help: "Total finalized submissions by instrument and severity",
		}, []string{"instrument", "severity"}),

		PersistenceAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_persistence_attempts_total",
			Help: "Total record persistence attempts by target and outcome",
		}, []string{"target", "outcome"}), // outcome: "success", "failure", "disabled"

		PersistenceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screening_persistence_duration_seconds",
			Help:    "Duration of record persistence by target",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"target"}),
	}
}

// IncrementSessionStarted records a new session.
func (m *Metrics) IncrementSessionStarted(instrument string) {
	if m != nil {
		m.SessionsStarted.WithLabelValues(instrument).Inc()
	}
}

// IncrementTransition records a step change.
func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

// IncrementGuardViolation records a refused operation.
func (m *Metrics) IncrementGuardViolation(code string) {
	if m != nil {
		m.GuardViolations.WithLabelValues(code).Inc()
	}
}

// IncrementSubmission records a finalized submission.
func (m *Metrics) IncrementSubmission(instrument, severity string) {
	if m != nil {
		m.Submissions.WithLabelValues(instrument, severity).Inc()
	}
}

// ObservePersistence records one persistence attempt and its duration.
func (m *Metrics) ObservePersistence(target, outcome string, d time.Duration) {
	if m != nil {
		m.PersistenceAttempts.WithLabelValues(target, outcome).Inc()
		m.PersistenceDuration.WithLabelValues(target).Observe(d.Seconds())
	}
}
