// Package backend holds what the event store backends share: their metrics.
package backend

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esdb",
		Subsystem: "backend",
		Name:      "events_appended_total",
		Help:      "Count of appended events.",
	}, []string{"eventType"})

	AppendConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "esdb",
		Subsystem: "backend",
		Name:      "append_conflicts_total",
		Help:      "Count of appends rejected by the expected revision check.",
	})

	EventDelay = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "esdb",
		Subsystem: "backend",
		Name:      "event_propagation_delay",
		Help:      "Delay between event append and delivery to live subscribers.",
	})

	Subscriptions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "esdb",
		Subsystem: "backend",
		Name:      "subscriptions",
		Help:      "Number of open subscriptions.",
	}, []string{"type"})

	PersistentOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esdb",
		Subsystem: "backend",
		Name:      "persistent_outcomes_total",
		Help:      "Count of persistent subscription events by how they were settled.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(EventsAppended, AppendConflicts, EventDelay, Subscriptions, PersistentOutcomes)
}
