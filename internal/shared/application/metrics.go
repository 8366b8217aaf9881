package application

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa los collectors del publisher.
type Metrics struct {
	attempts *prometheus.CounterVec
	results  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registra los collectors en reg. Con reg nil no se registra nada (tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbus",
			Name:      "publish_attempts_total",
			Help:      "Send attempts made against the broker.",
		}, []string{"topic"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbus",
			Name:      "publish_results_total",
			Help:      "Publish outcomes by topic.",
		}, []string{"topic", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orderbus",
			Name:      "publish_duration_seconds",
			Help:      "Time from publish call to terminal outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.results, m.latency)
	}
	return m
}

const (
	outcomeAcked     = "acked"
	outcomeInvalid   = "invalid"
	outcomeRejected  = "rejected"
	outcomeExhausted = "exhausted"
	outcomeCancelled = "cancelled"
)
