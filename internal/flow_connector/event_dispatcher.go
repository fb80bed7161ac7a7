package flow_connector

import (
	"context"
	"errors"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/event_registry"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/subscription_repository"
	"github.com/FlowPlatform/flow-connector/internal/tenant"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var ErrEventKeyNotResolved = errors.New("unable to resolve the event key for the inbound event")

// EventDispatcher runs the full ingest pipeline for one inbound event:
// parse, resolve the event key and tenant, look up the definition,
// materialize the event instance and correlate it against the
// subscription index.  Dispatch runs synchronously on the delivering
// goroutine; the returned action set is complete and order independent.
type EventDispatcher struct {
	tenantResolver  tenant.TenantIdResolver
	registry        event_registry.EventDefinitionRegistry
	subscriptions   subscription_repository.SubscriptionRepository
	instanceBuilder *EventInstanceBuilder
}

func NewEventDispatcher(
	tenantResolver tenant.TenantIdResolver,
	registry event_registry.EventDefinitionRegistry,
	subscriptions subscription_repository.SubscriptionRepository) *EventDispatcher {

	return &EventDispatcher{
		tenantResolver:  tenantResolver,
		registry:        registry,
		subscriptions:   subscriptions,
		instanceBuilder: NewEventInstanceBuilder(),
	}
}

// DispatchEvent is the single entry point for inbound events.  An event
// that resolves no definition or matches no subscription is not an
// error - it yields a single Dropped action.  Materialization failures
// are returned to the caller and leave no side effects behind.
func (d *EventDispatcher) DispatchEvent(ctx context.Context, ch domain.InboundChannel, rawPayload []byte) ([]domain.Action, error) {

	callDurationTimer := prometheus.NewTimer(metrics.dispatchDuration)
	defer callDurationTimer.ObserveDuration()

	metrics.eventReceivedCounter.Inc()

	payload, err := channel.ParseJSONPayload(rawPayload)
	if err != nil {
		return nil, err
	}

	eventKey, err := resolveEventKey(ch, payload)
	if err != nil {
		return nil, err
	}

	// Tenant resolution never fails - it degrades to the default tenant
	eventTenant, err := d.tenantResolver.ResolveTenantId(ctx, ch, payload)
	if err != nil {
		eventTenant = domain.NoTenant
	}

	log := logger.Log.WithFields(logrus.Fields{
		"channel":   ch.Key,
		"event_key": eventKey,
		"tenant":    eventTenant})

	def, err := d.registry.LookupDefinition(ctx, eventKey, eventTenant)
	if err == event_registry.ErrEventDefinitionNotFound {
		log.Debug("No event definition for the inbound event - dropping")
		metrics.eventDroppedCounter.Inc()
		return []domain.Action{{Type: domain.DroppedAction}}, nil
	}
	if err != nil {
		return nil, err
	}

	instance, err := d.instanceBuilder.Build(def, payload, eventTenant)
	if err != nil {
		metrics.materializationFailureCounter.Inc()
		return nil, err
	}

	return d.correlate(ctx, log, instance)
}

// correlate evaluates every candidate - no short circuit on the first
// hit, since one event can resume many waiting executions and trigger a
// start subscription in the same dispatch.
func (d *EventDispatcher) correlate(ctx context.Context, log *logrus.Entry, instance *domain.EventInstance) ([]domain.Action, error) {

	// The index narrows by (key, tenant) - subscriptions from other
	// tenants are structurally excluded
	candidates, err := d.subscriptions.FindCandidates(ctx, instance.DefinitionKey, instance.TenantID)
	if err != nil {
		return nil, err
	}

	actions := make([]domain.Action, 0, len(candidates))

	for _, candidate := range candidates {
		if !subscriptionMatches(candidate, instance) {
			continue
		}

		switch candidate.Scope.Type {

		case domain.BoundToScope:
			// Every matching waiting execution resumes independently
			actions = append(actions, domain.Action{
				Type:           domain.ResumeAction,
				ExecutionRef:   candidate.Scope.ExecutionRef,
				SubscriptionID: candidate.ID,
				Event:          instance,
			})
			metrics.resumeActionCounter.Inc()

		case domain.StartNewScope:
			if candidate.Scope.UniquePolicy == domain.UniquePerCorrelation {
				correlationKey := domain.CorrelationKey(instance.CorrelationValues)
				won, err := d.subscriptions.ConsumeStartSubscription(ctx, candidate.ID, correlationKey)
				if err != nil {
					return nil, err
				}
				if !won {
					log.WithFields(logrus.Fields{"subscription_id": candidate.ID}).Debug("Start subscription already consumed for this correlation set")
					metrics.uniqueConsumeConflictCounter.Inc()
					continue
				}
			}

			actions = append(actions, domain.Action{
				Type:                 domain.InstantiateAction,
				ProcessDefinitionRef: candidate.Scope.ProcessDefinitionRef,
				SubscriptionID:       candidate.ID,
				Event:                instance,
			})
			metrics.instantiateActionCounter.Inc()
		}
	}

	if len(actions) == 0 {
		log.Debug("No subscription matched the inbound event - dropping")
		metrics.eventDroppedCounter.Inc()
		return []domain.Action{{Type: domain.DroppedAction, Event: instance}}, nil
	}

	return actions, nil
}

// subscriptionMatches applies the partial assignment semantics: every
// correlation parameter present in the subscription's filter must have
// an equal value in the event instance.  Filter parameters that are
// missing are wildcards; event parameters absent from the filter are
// irrelevant.
func subscriptionMatches(sub domain.EventSubscription, instance *domain.EventInstance) bool {
	for name, expected := range sub.CorrelationFilter {
		actual, present := instance.CorrelationValues[name]
		if !present || !correlationValuesEqual(actual, expected) {
			return false
		}
	}
	return true
}

// Filters arriving over the wire carry JSON numbers as float64 while
// materialized integer values are int64 - compare numerics by value.
func correlationValuesEqual(a interface{}, b interface{}) bool {
	if a == b {
		return true
	}

	af, aok := asFloat(a)
	bf, bok := asFloat(b)

	return aok && bok && af == bf
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func resolveEventKey(ch domain.InboundChannel, payload channel.RawPayload) (domain.EventKey, error) {

	switch ch.EventKeyStrategy.Type {

	case domain.FixedEventKeyStrategy:
		return ch.EventKeyStrategy.EventKey, nil

	case domain.DetectEventKeyStrategy:
		value, found := payload.Lookup(ch.EventKeyStrategy.FieldPath)
		if !found {
			return "", ErrEventKeyNotResolved
		}
		key, ok := value.(string)
		if !ok || key == "" {
			return "", ErrEventKeyNotResolved
		}
		return domain.EventKey(key), nil

	default:
		return "", ErrEventKeyNotResolved
	}
}
