// Package metrics exposes Prometheus instrumentation for the gateway:
// invocation outcomes and latency, retry volume, live process count, and
// reaper activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_invocations_total",
			Help: "Total tool invocations by command and outcome",
		},
		[]string{"command", "outcome"}, // outcome: success|timeout|nonzero_exit|spawn_failure
	)

	InvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolgate_invocation_duration_seconds",
			Help:    "End-to-end invocation duration including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_retries_total",
			Help: "Retry attempts beyond the first, by command",
		},
		[]string{"command"},
	)
)

// RegisterRuntimeGauges publishes live readings sampled at scrape time.
// Pulling from the registry and reaper directly avoids a second set of
// counters that could drift from the authoritative ones.
func RegisterRuntimeGauges(activeProcesses func() float64, reaperKilled func() float64) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "toolgate_active_processes",
			Help: "Live tool-invocation processes",
		},
		activeProcesses,
	)
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "toolgate_reaper_killed",
			Help: "Processes terminated by the orphan reaper since start",
		},
		reaperKilled,
	)
}
