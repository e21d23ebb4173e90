package esdb

import "github.com/prometheus/client_golang/prometheus"

var (
	appendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esdb",
		Subsystem: "client",
		Name:      "appends_total",
		Help:      "Count of append calls by outcome.",
	}, []string{"result"})

	eventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esdb",
		Subsystem: "client",
		Name:      "events_received_total",
		Help:      "Count of events delivered to callers.",
	}, []string{"source"})

	subscriptionsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "esdb",
		Subsystem: "client",
		Name:      "subscriptions_active",
		Help:      "Number of open subscriptions.",
	}, []string{"type"})

	controlMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esdb",
		Subsystem: "client",
		Name:      "persistent_control_messages_total",
		Help:      "Count of ack and nack messages enqueued on persistent subscriptions.",
	}, []string{"type"})
)

const (
	sourceRead       = "read"
	sourceSubscribe  = "subscription"
	sourcePersistent = "persistent"
)

func init() {
	prometheus.MustRegister(appendsTotal, eventsReceived, subscriptionsActive, controlMessages)
}
