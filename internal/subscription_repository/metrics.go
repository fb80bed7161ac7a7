package subscription_repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type subscriptionRepositoryMetrics struct {
	subscriptionRegisteredCounter   prometheus.Counter
	subscriptionUnregisteredCounter prometheus.Counter
	redisErrorCounter               prometheus.Counter
}

func newSubscriptionRepositoryMetrics() *subscriptionRepositoryMetrics {
	metrics := new(subscriptionRepositoryMetrics)

	metrics.subscriptionRegisteredCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_subscription_registered_count",
		Help: "The number of subscriptions registered",
	})

	metrics.subscriptionUnregisteredCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_subscription_unregistered_count",
		Help: "The number of subscriptions unregistered",
	})

	metrics.redisErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_subscription_redis_error_count",
		Help: "The number of errors encountered while communicating with redis",
	})

	return metrics
}

var (
	metrics = newSubscriptionRepositoryMetrics()
)
