package aireg_protocol

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects submission and payment counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	attempts    prometheus.Counter
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	backoff     *prometheus.HistogramVec
	payments    *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg under the "aireg" namespace.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "aireg",
			Subsystem: "submit",
			Name:      "attempts_total",
			Help:      "Transaction send attempts.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aireg",
			Subsystem: "submit",
			Name:      "transitions_total",
			Help:      "Submission state transitions by target state.",
		}, []string{"state"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aireg",
			Subsystem: "submit",
			Name:      "outcomes_total",
			Help:      "Finished submissions by terminal state.",
		}, []string{"state"}),
		backoff: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aireg",
			Subsystem: "submit",
			Name:      "backoff_seconds",
			Help:      "Delay before the next attempt, by failure class.",
			Buckets:   []float64{0.5, 1, 2, 3, 4, 5, 6, 8},
		}, []string{"class"}),
		payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aireg",
			Subsystem: "payments",
			Name:      "base_units_total",
			Help:      "Token base units moved or approved, by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) attempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *Metrics) transition(to State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to.String()).Inc()
	if to == StateConfirmed || to == StateFailed {
		m.outcomes.WithLabelValues(to.String()).Inc()
	}
}

func (m *Metrics) delay(class ErrorClass, d time.Duration) {
	if m == nil {
		return
	}
	m.backoff.WithLabelValues(class.String()).Observe(d.Seconds())
}

func (m *Metrics) payment(kind string, amount uint64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(kind).Add(float64(amount))
}
