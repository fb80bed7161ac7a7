package event_registry

import (
	"context"
	"sync"

	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

type definitionKey struct {
	key    domain.EventKey
	tenant domain.TenantID
}

type definitionVersions struct {
	active   *domain.EventDefinition
	versions []domain.EventDefinition
}

// LocalEventDefinitionRegistry keeps the definitions in process memory.
// Deploy and retire take the write lock, so a concurrent lookup either
// sees the previous active definition or the fully installed new one.
type LocalEventDefinitionRegistry struct {
	definitions             map[definitionKey]*definitionVersions
	ordered                 []definitionKey
	fallbackToDefaultTenant bool
	sync.RWMutex
}

func NewLocalEventDefinitionRegistry(fallbackToDefaultTenant bool) *LocalEventDefinitionRegistry {
	return &LocalEventDefinitionRegistry{
		definitions:             make(map[definitionKey]*definitionVersions),
		fallbackToDefaultTenant: fallbackToDefaultTenant,
	}
}

func (r *LocalEventDefinitionRegistry) Deploy(ctx context.Context, def domain.EventDefinition) (domain.EventDefinition, error) {
	r.Lock()
	defer r.Unlock()

	dk := definitionKey{key: def.Key, tenant: def.TenantID}

	entry, exists := r.definitions[dk]
	if !exists {
		entry = &definitionVersions{}
		r.definitions[dk] = entry
		r.ordered = append(r.ordered, dk)
	}

	def.Version = len(entry.versions) + 1
	entry.versions = append(entry.versions, def)
	entry.active = &entry.versions[len(entry.versions)-1]

	logger.Log.WithFields(logrus.Fields{
		"event_key": def.Key,
		"tenant":    def.TenantID,
		"version":   def.Version}).Info("Deployed an event definition")

	metrics.definitionDeployedCounter.Inc()

	return def, nil
}

func (r *LocalEventDefinitionRegistry) Retire(ctx context.Context, key domain.EventKey, tenant domain.TenantID) error {
	r.Lock()
	defer r.Unlock()

	entry, exists := r.definitions[definitionKey{key: key, tenant: tenant}]
	if !exists || entry.active == nil {
		return ErrEventDefinitionNotFound
	}

	entry.active = nil

	logger.Log.WithFields(logrus.Fields{"event_key": key, "tenant": tenant}).Info("Retired an event definition")

	return nil
}

func (r *LocalEventDefinitionRegistry) LookupDefinition(ctx context.Context, key domain.EventKey, tenant domain.TenantID) (domain.EventDefinition, error) {
	r.RLock()
	defer r.RUnlock()

	if entry, exists := r.definitions[definitionKey{key: key, tenant: tenant}]; exists && entry.active != nil {
		return *entry.active, nil
	}

	if r.fallbackToDefaultTenant && tenant != domain.NoTenant {
		if entry, exists := r.definitions[definitionKey{key: key, tenant: domain.NoTenant}]; exists && entry.active != nil {
			metrics.fallbackLookupCounter.Inc()
			return *entry.active, nil
		}
	}

	return domain.EventDefinition{}, ErrEventDefinitionNotFound
}

func (r *LocalEventDefinitionRegistry) LookupDefinitionByVersion(ctx context.Context, key domain.EventKey, tenant domain.TenantID, version int) (domain.EventDefinition, error) {
	r.RLock()
	defer r.RUnlock()

	entry, exists := r.definitions[definitionKey{key: key, tenant: tenant}]
	if !exists || version < 1 || version > len(entry.versions) {
		return domain.EventDefinition{}, ErrEventDefinitionNotFound
	}

	return entry.versions[version-1], nil
}

func (r *LocalEventDefinitionRegistry) GetDefinitions(ctx context.Context, offset int, limit int) ([]domain.EventDefinition, int, error) {
	r.RLock()
	defer r.RUnlock()

	active := make([]domain.EventDefinition, 0, len(r.ordered))
	for _, dk := range r.ordered {
		if entry := r.definitions[dk]; entry.active != nil {
			active = append(active, *entry.active)
		}
	}

	total := len(active)
	if offset >= total {
		return []domain.EventDefinition{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return active[offset:end], total, nil
}
