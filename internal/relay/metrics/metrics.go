package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the deposit relay.
type Metrics struct {
	// Notifications read off the deposit stream
	Received prometheus.Counter

	// Notifications dropped because the payload failed schema validation
	Invalid prometheus.Counter

	// Notifications absorbed by the dedup set
	Duplicates prometheus.Counter

	// Terminal reports published, by state
	Reported *prometheus.CounterVec

	// Report publishes that failed
	ReportFailures prometheus.Counter

	// Time from reading a notification to publishing its terminal report
	HandlingLatency prometheus.Histogram
}

// New creates a new Metrics instance with all relay metrics registered.
func New() *Metrics {
	return &Metrics{
		Received: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_relay_deposits_received_total",
			Help: "Total deposit notifications read from the stream",
		}),

		Invalid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_relay_deposits_invalid_total",
			Help: "Total deposit notifications dropped as malformed",
		}),

		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_relay_deposits_duplicate_total",
			Help: "Total deposit notifications absorbed by the dedup set",
		}),

		Reported: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_relay_reports_total",
			Help: "Total terminal deposit reports published by state",
		}, []string{"state"}),

		ReportFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tessera_relay_report_failures_total",
			Help: "Total failed publishes of terminal deposit reports",
		}),

		HandlingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tessera_relay_handling_duration_seconds",
			Help:    "Duration from deposit notification to terminal report",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// IncrementReceived records one notification read from the stream.
func (m *Metrics) IncrementReceived() {
	if m != nil {
		m.Received.Inc()
	}
}

// IncrementInvalid records a malformed notification.
func (m *Metrics) IncrementInvalid() {
	if m != nil {
		m.Invalid.Inc()
	}
}

// IncrementDuplicate records a redelivered notification.
func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.Duplicates.Inc()
	}
}

// ObserveReport records one published terminal report and its handling time.
func (m *Metrics) ObserveReport(state string, d time.Duration) {
	if m != nil {
		m.Reported.WithLabelValues(state).Inc()
		m.HandlingLatency.Observe(d.Seconds())
	}
}

// IncrementReportFailure records a report publish that failed.
func (m *Metrics) IncrementReportFailure() {
	if m != nil {
		m.ReportFailures.Inc()
	}
}
