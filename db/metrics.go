package db

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mintdb_commit_duration_seconds",
			Help:    "Duration of transaction commits",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 0.2, 0.5, 1, 1.5, 2},
		},
		[]string{"operation"},
	)

	commitFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintdb_commit_failures_total",
			Help: "Total number of failed transaction commits",
		},
		[]string{"operation"},
	)

	existenceViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintdb_existence_violations_total",
			Help: "Batch items whose existence expectation did not hold",
		},
		[]string{"kind"},
	)
)

// RegisterMetrics adds the store's collectors to reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{commitDuration, commitFailures, existenceViolations} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
