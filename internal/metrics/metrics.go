// Package metrics holds the Prometheus instruments for cloud sync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Push and pull operation labels.
const (
	OpUpsert    = "upsert"
	OpDelete    = "delete"
	OpDeleteAll = "delete_all"
	OpFetch     = "fetch"
	OpStore     = "store"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics tracks remote pushes and identity-driven pulls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Pushes        *prometheus.CounterVec
	PushDuration  *prometheus.HistogramVec
	Pulled        *prometheus.CounterVec
	PullFailures  *prometheus.CounterVec
	Skipped       *prometheus.CounterVec
	PullDuration  prometheus.Histogram
	PushesRunning prometheus.Gauge
}

// New registers the sync metrics with reg. A nil reg uses a fresh private
// registry, which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Pushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "goalcoach_remote_pushes_total",
			Help: "Remote mirror writes by kind, operation and result",
		}, []string{"kind", "op", "result"}),
		PushDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goalcoach_remote_push_duration_seconds",
			Help:    "Duration of remote mirror writes",
			Buckets: durationBuckets,
		}, []string{"kind", "op"}),
		Pulled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "goalcoach_pull_records_total",
			Help: "Records pulled from the remote mirror into the local store",
		}, []string{"kind"}),
		PullFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "goalcoach_pull_failures_total",
			Help: "Pull failures by kind and stage (fetch or store)",
		}, []string{"kind", "op"}),
		Skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "goalcoach_pull_skipped_total",
			Help: "Remote records skipped during a pull",
		}, []string{"kind", "reason"}),
		PullDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "goalcoach_pull_duration_seconds",
			Help:    "Duration of a full pull for one identity",
			Buckets: durationBuckets,
		}),
		PushesRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "goalcoach_pushes_in_flight",
			Help: "Remote writes currently running",
		}),
	}
}

// RecordPush records the outcome of one remote write started at start.
func (m *Metrics) RecordPush(kind, op string, err error, start time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Pushes.WithLabelValues(kind, op, result).Inc()
	m.PushDuration.WithLabelValues(kind, op).Observe(time.Since(start).Seconds())
}

// RecordPulled adds n records pulled for kind.
func (m *Metrics) RecordPulled(kind string, n int) {
	if m == nil {
		return
	}
	m.Pulled.WithLabelValues(kind).Add(float64(n))
}

// RecordPullFailure counts a failed fetch or local write during a pull.
func (m *Metrics) RecordPullFailure(kind, op string) {
	if m == nil {
		return
	}
	m.PullFailures.WithLabelValues(kind, op).Inc()
}

// RecordSkipped counts a remote record that was not applied.
func (m *Metrics) RecordSkipped(kind, reason string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(kind, reason).Inc()
}

// ObservePull records the duration of a pull started at start.
func (m *Metrics) ObservePull(start time.Time) {
	if m == nil {
		return
	}
	m.PullDuration.Observe(time.Since(start).Seconds())
}

// PushStarted and PushFinished track writes in flight.
func (m *Metrics) PushStarted() {
	if m == nil {
		return
	}
	m.PushesRunning.Inc()
}

func (m *Metrics) PushFinished() {
	if m == nil {
		return
	}
	m.PushesRunning.Dec()
}
