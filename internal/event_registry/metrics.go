package event_registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type eventRegistryMetrics struct {
	definitionDeployedCounter prometheus.Counter
	fallbackLookupCounter     prometheus.Counter
	sqlDeployDuration         prometheus.Histogram
	sqlLookupDuration         prometheus.Histogram
}

func newEventRegistryMetrics() *eventRegistryMetrics {
	metrics := new(eventRegistryMetrics)

	metrics.definitionDeployedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_event_definition_deployed_count",
		Help: "The number of event definitions deployed",
	})

	metrics.fallbackLookupCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_event_definition_fallback_lookup_count",
		Help: "The number of definition lookups resolved against the default tenant",
	})

	metrics.sqlDeployDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "flow_connector_sql_deploy_definition_duration",
		Help: "The amount of time it took to deploy an event definition in the db",
	})

	metrics.sqlLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "flow_connector_sql_lookup_definition_duration",
		Help: "The amount of time it took to look up an event definition in the db",
	})

	return metrics
}

var (
	metrics = newEventRegistryMetrics()
)
