package svr

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Engine runs by outcome: ok, error or pass_through.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saturn_engine_runs_total",
			Help: "Engine runs by outcome and output shape.",
		},
		[]string{"outcome", "shape"},
	)

	// Missing-score cache lookups by result: hit or miss.
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saturn_cache_lookups_total",
			Help: "Missing-score multiplier cache lookups by result.",
		},
		[]string{"result"},
	)

	// Latency of a single engine run.
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "saturn_engine_run_duration_seconds",
		Help:    "Latency of a single engine run.",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
	})
)

var registerOnce sync.Once

// RegisterMetrics registers the engine collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RunsTotal, CacheLookupsTotal, RunDuration)
	})
}
