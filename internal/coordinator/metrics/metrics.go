package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the coordinator module.
type Metrics struct {
	// Submissions accepted onto the consensus log, by intent type
	Submitted *prometheus.CounterVec

	// Submissions short-circuited because the nonce already had a record
	DuplicateSubmissions prometheus.Counter

	// Confirmed executions by intent type and outcome
	Executed *prometheus.CounterVec

	// Confirmed entries skipped because the record was already terminal
	SkippedConfirmations prometheus.Counter

	// Terminations triggered inline by a cap-reaching accrual
	AutoTerminations prometheus.Counter

	// Execution sequence latency by intent type
	ExecutionLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance with all coordinator metrics registered.
func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_coordinator_submissions_total",
			Help: "Total intents appended to the consensus log by type",
		}, []string{"type"}),

		DuplicateSubmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_coordinator_duplicate_submissions_total",
			Help: "Total submissions answered from an existing operation record",
		}),

		Executed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_coordinator_executions_total",
			Help: "Total confirmed intent executions by type and outcome",
		}, []string{"type", "outcome"}),

		SkippedConfirmations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_coordinator_skipped_confirmations_total",
			Help: "Total confirmed entries skipped because the operation was already terminal",
		}),

		AutoTerminations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_coordinator_auto_terminations_total",
			Help: "Total terminations triggered inline by quota exhaustion",
		}),

		ExecutionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tessera_coordinator_execution_duration_seconds",
			Help:    "Duration of confirmed intent execution sequences by type",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"type"}),
	}
}

// IncrementSubmitted records an accepted submission.
func (m *Metrics) IncrementSubmitted(intentType string) {
	if m != nil {
		m.Submitted.WithLabelValues(intentType).Inc()
	}
}

// IncrementDuplicateSubmission records a submission resolved idempotently.
func (m *Metrics) IncrementDuplicateSubmission() {
	if m != nil {
		m.DuplicateSubmissions.Inc()
	}
}

// ObserveExecution records one confirmed execution with its duration.
func (m *Metrics) ObserveExecution(intentType, outcome string, d time.Duration) {
	if m != nil {
		m.Executed.WithLabelValues(intentType, outcome).Inc()
		m.ExecutionLatency.WithLabelValues(intentType).Observe(d.Seconds())
	}
}

// IncrementSkippedConfirmation records a redelivered entry absorbed by the
// terminal-status check.
func (m *Metrics) IncrementSkippedConfirmation() {
	if m != nil {
		m.SkippedConfirmations.Inc()
	}
}

// IncrementAutoTermination records an inline cap-reached termination.
func (m *Metrics) IncrementAutoTermination() {
	if m != nil {
		m.AutoTerminations.Inc()
	}
}
