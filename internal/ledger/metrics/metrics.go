package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger gateway calls.
type Metrics struct {
	// Gateway calls by operation and outcome
	Calls *prometheus.CounterVec

	// Gateway call latency by operation
	CallLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		Calls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_ledger_calls_total",
			Help: "Total ledger gateway calls by operation and outcome",
		}, []string{"op", "outcome"}), // outcome: "ok", "error"

		CallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tessera_ledger_call_duration_seconds",
			Help:    "Duration of ledger gateway calls by operation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op"}),
	}
}

// ObserveCall records one gateway call.
func (m *Metrics) ObserveCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Calls.WithLabelValues(op, outcome).Inc()
	m.CallLatency.WithLabelValues(op).Observe(d.Seconds())
}
