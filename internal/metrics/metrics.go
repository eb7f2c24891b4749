// Package metrics exposes Prometheus collectors for the emulator host.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "playgames"

// Metrics records executed calls and open connections
type Metrics struct {
	calls    *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
	duration *prometheus.HistogramVec
	reg      prometheus.Registerer
}

// New registers the call collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Executed calls by action and outcome.",
		}, []string{"action", "outcome"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_in_flight",
			Help:      "Calls currently executing, by action.",
		}, []string{"action"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Call execution time by action.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"action"}),
		reg: reg,
	}
	reg.MustRegister(m.calls, m.inFlight, m.duration)
	return m
}

// CallStarted marks a call as in flight
func (m *Metrics) CallStarted(action string) {
	m.inFlight.WithLabelValues(action).Inc()
}

// CallFinished records a completed call. outcome is the status name of the
// reply, or "message" for bare string failures.
func (m *Metrics) CallFinished(action, outcome string, elapsed time.Duration) {
	m.inFlight.WithLabelValues(action).Dec()
	m.calls.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// TrackConnections exports the value of count as the open websocket
// connection gauge.
func (m *Metrics) TrackConnections(count func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Open websocket connections.",
	}, func() float64 {
		return float64(count())
	}))
}
