package tenant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type translatorMetrics struct {
	cacheHitCounter         prometheus.Counter
	translationErrorCounter prometheus.Counter
}

var metrics = newTranslatorMetrics()

func newTranslatorMetrics() *translatorMetrics {
	metrics := new(translatorMetrics)

	metrics.cacheHitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_tenant_translation_cache_hit_count",
		Help: "The number of tenant translations served from the cache",
	})

	metrics.translationErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_connector_tenant_translation_error_count",
		Help: "The number of failed tenant translation calls",
	})

	return metrics
}
