// Package monitoring exposes the Prometheus surface for fluxgraph's three
// coupled subsystems: scheduler drain counts, dispatcher claim counts,
// and executor node-duration histograms.
package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	// SchedulerDrainedTotal counts schedule entries drained onto the
	// trigger stream by the scheduler's Tick loop.
	SchedulerDrainedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fluxgraph",
		Subsystem: "scheduler",
		Name:      "drained_total",
		Help:      "Total schedule entries drained onto workflow_triggers.",
	})

	// DispatcherProcessedTotal counts trigger records the dispatcher has
	// handled, partitioned by outcome (acked/failed).
	DispatcherProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fluxgraph",
		Subsystem: "dispatcher",
		Name:      "processed_total",
		Help:      "Total trigger records processed by the dispatcher.",
	}, []string{"outcome"})

	// DispatcherClaimedTotal counts pending entries reclaimed by the
	// claimer loop.
	DispatcherClaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fluxgraph",
		Subsystem: "dispatcher",
		Name:      "claimed_total",
		Help:      "Total pending trigger entries reclaimed from a dead consumer.",
	})

	// ExecutorNodeDuration observes wall-clock seconds spent inside a
	// single node's handler invocation, partitioned by category and
	// terminal status.
	ExecutorNodeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fluxgraph",
		Subsystem: "executor",
		Name:      "node_duration_seconds",
		Help:      "Duration of a single node's handler invocation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"category", "status"})
)

// MustRegister registers every collector in this package against reg.
// Call once per process (typically from cmd/'s RunE, against
// prometheus.DefaultRegisterer).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(SchedulerDrainedTotal, DispatcherProcessedTotal, DispatcherClaimedTotal, ExecutorNodeDuration)
}
