package flow_connector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type dispatcherMetrics struct {
	eventReceivedCounter          prometheus.Counter
	eventDroppedCounter           prometheus.Counter
	resumeActionCounter           prometheus.Counter
	instantiateActionCounter      prometheus.Counter
	materializationFailureCounter prometheus.Counter
	uniqueConsumeConflictCounter  prometheus.Counter
	dispatchDuration              prometheus.Histogram
}

func newDispatcherMetrics() *dispatcherMetrics {
	metrics := new(dispatcherMetrics)

	metrics.eventReceivedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_event_received_count",
		Help: "The number of inbound events received",
	})

	metrics.eventDroppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_event_dropped_count",
		Help: "The number of inbound events dropped (no definition or no matching subscription)",
	})

	metrics.resumeActionCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_resume_action_count",
		Help: "The number of resume actions produced",
	})

	metrics.instantiateActionCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_instantiate_action_count",
		Help: "The number of instantiate actions produced",
	})

	metrics.materializationFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_materialization_failure_count",
		Help: "The number of events that failed type coercion",
	})

	metrics.uniqueConsumeConflictCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_unique_consume_conflict_count",
		Help: "The number of unique start subscription consumptions lost to a concurrent dispatch",
	})

	metrics.dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "flow_connector_dispatch_duration",
		Help: "The amount of time it took to dispatch one inbound event",
	})

	return metrics
}

var (
	metrics = newDispatcherMetrics()
)
