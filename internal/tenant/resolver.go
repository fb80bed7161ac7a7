package tenant

import (
	"context"
	"errors"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
)

// TenantIdResolver determines the tenant of one inbound event.  Tenant
// detection never blocks ingestion: an unresolvable detect expression
// degrades to domain.NoTenant instead of returning an error.
type TenantIdResolver interface {
	ResolveTenantId(ctx context.Context, ch domain.InboundChannel, payload channel.RawPayload) (domain.TenantID, error)
}

func NewTenantIdResolver(tenantIdResolverImpl string, cfg *config.Config) (TenantIdResolver, error) {
	switch tenantIdResolverImpl {
	case "channel":
		return &ChannelStrategyTenantIdResolver{}, nil
	case "translator":
		return NewTranslatorTenantIdResolver(cfg)
	default:
		return nil, errors.New("Invalid TenantIdResolver impl requested")
	}
}

// ChannelStrategyTenantIdResolver evaluates the channel's declared
// tenant strategy against the raw payload.
type ChannelStrategyTenantIdResolver struct {
}

func (r *ChannelStrategyTenantIdResolver) ResolveTenantId(ctx context.Context, ch domain.InboundChannel, payload channel.RawPayload) (domain.TenantID, error) {

	switch ch.TenantStrategy.Type {

	case domain.FixedTenantStrategy:
		return ch.TenantStrategy.TenantID, nil

	case domain.DetectTenantStrategy:
		return detectTenantId(ch, payload), nil

	default:
		return domain.NoTenant, nil
	}
}

func detectTenantId(ch domain.InboundChannel, payload channel.RawPayload) domain.TenantID {

	value, found := payload.Lookup(ch.TenantStrategy.FieldPath)
	if !found {
		logger.Log.Debugf("Tenant detection field (%s) not present in payload - using the default tenant", ch.TenantStrategy.FieldPath)
		return domain.NoTenant
	}

	tenant, ok := value.(string)
	if !ok || tenant == "" {
		logger.Log.Debugf("Tenant detection field (%s) is empty or not a string - using the default tenant", ch.TenantStrategy.FieldPath)
		return domain.NoTenant
	}

	return domain.TenantID(tenant)
}
