package main

import (
	"context"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/event_registry"
	"github.com/FlowPlatform/flow-connector/internal/flow_connector"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/subscription_repository"
	"github.com/FlowPlatform/flow-connector/internal/tenant"
)

// eventPipeline bundles the components every process variant needs to
// take an inbound event from a channel to a set of actions.
type eventPipeline struct {
	channelRegistry *channel.LocalChannelRegistry
	registry        event_registry.EventDefinitionRegistry
	subscriptions   subscription_repository.SubscriptionRepository
	dispatcher      *flow_connector.EventDispatcher
	actionHandler   flow_connector.ActionHandler
}

func buildEventPipeline(cfg *config.Config) *eventPipeline {

	channelRegistry := channel.NewLocalChannelRegistry()

	if cfg.ChannelConfigFile != "" {
		if err := channel.LoadChannelsFromFile(context.Background(), channelRegistry, cfg.ChannelConfigFile); err != nil {
			logger.LogFatalError("Unable to load the inbound channel configuration", err)
		}
	}

	tenantResolver, err := tenant.NewTenantIdResolver(cfg.TenantResolverImpl, cfg)
	if err != nil {
		logger.LogFatalError("Failed to create Tenant ID Resolver", err)
	}

	registry, err := event_registry.NewEventDefinitionRegistry(cfg.EventRegistryImpl, cfg)
	if err != nil {
		logger.LogFatalError("Failed to create Event Definition Registry", err)
	}

	subscriptions, err := subscription_repository.NewSubscriptionRepository(cfg.SubscriptionRepositoryImpl, cfg)
	if err != nil {
		logger.LogFatalError("Failed to create Subscription Repository", err)
	}

	actionHandler, err := flow_connector.NewActionHandler(cfg.ActionHandlerImpl, cfg)
	if err != nil {
		logger.LogFatalError("Failed to create Action Handler", err)
	}

	dispatcher := flow_connector.NewEventDispatcher(tenantResolver, registry, subscriptions)

	return &eventPipeline{
		channelRegistry: channelRegistry,
		registry:        registry,
		subscriptions:   subscriptions,
		dispatcher:      dispatcher,
		actionHandler:   actionHandler,
	}
}
