package tenant

import (
	"context"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"

	"github.com/RedHatInsights/tenant-utils/pkg/tenantid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// TranslatorTenantIdResolver evaluates the channel strategy and then
// maps the detected value through an external tenant mapping service.
// Some platforms key inbound payloads by an external account number
// rather than by the tenant id the workflow runtime uses.  A mapping
// miss or transport error degrades to the raw detected value so that
// translation never blocks ingestion.  Fixed and none strategies bypass
// translation entirely.
type TranslatorTenantIdResolver struct {
	strategyResolver ChannelStrategyTenantIdResolver
	translator       tenantid.Translator
	cache            *expirable.LRU[domain.TenantID, domain.TenantID]
}

func NewTranslatorTenantIdResolver(cfg *config.Config) (*TranslatorTenantIdResolver, error) {

	translator := tenantid.NewTranslator(cfg.TenantTranslatorURL, tenantid.WithTimeout(cfg.TenantTranslatorTimeout))

	cache := expirable.NewLRU[domain.TenantID, domain.TenantID](cfg.TenantTranslatorCacheSize, nil, cfg.TenantTranslatorCacheTTL)

	return &TranslatorTenantIdResolver{
		translator: translator,
		cache:      cache,
	}, nil
}

func (r *TranslatorTenantIdResolver) ResolveTenantId(ctx context.Context, ch domain.InboundChannel, payload channel.RawPayload) (domain.TenantID, error) {

	detected, err := r.strategyResolver.ResolveTenantId(ctx, ch, payload)
	if err != nil {
		return detected, err
	}

	// Only detected values go through the mapping service
	if ch.TenantStrategy.Type != domain.DetectTenantStrategy || detected == domain.NoTenant {
		return detected, nil
	}

	if mapped, ok := r.cache.Get(detected); ok {
		metrics.cacheHitCounter.Inc()
		return mapped, nil
	}

	orgId, err := r.translator.EANToOrgID(ctx, string(detected))
	if err != nil {
		metrics.translationErrorCounter.Inc()
		logger.Log.WithFields(logrus.Fields{"error": err, "tenant": detected}).Warn("Tenant translation failed - using the detected value")
		return detected, nil
	}

	mapped := domain.TenantID(orgId)
	r.cache.Add(detected, mapped)

	return mapped, nil
}
