package generate

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments a generate run for scraping, grounded on the
// teacher's prism early-termination counters
// (internal/.../early_term_traversal.go's CounterVec/GaugeVec-per-reason
// pattern), relabeled to provider/outcome instead of termination reason.
type Metrics struct {
	jobAttempts *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics lazily registers the package's metrics against the
// default Prometheus registry exactly once, returning the shared
// instance on every call thereafter.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = newMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lootforge",
			Subsystem: "generate",
			Name:      "job_attempts_total",
			Help:      "Generate job attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lootforge",
			Subsystem: "generate",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of one job's attempt sequence.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	_ = reg.Register(m.jobAttempts)
	_ = reg.Register(m.jobDuration)
	return m
}

func (m *Metrics) observe(providerName string, succeeded bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}
	m.jobAttempts.WithLabelValues(providerName, outcome).Inc()
	m.jobDuration.WithLabelValues(providerName).Observe(seconds)
}
