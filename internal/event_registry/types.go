package event_registry

import (
	"context"
	"errors"

	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/db"
)

var (
	ErrEventDefinitionNotFound = errors.New("event definition not found")
)

// EventDefinitionRegistry stores the versioned event definitions per
// (key, tenant).  Deploy and Retire are administrative operations and
// are assumed to be externally serialized per (key, tenant); the
// registry guarantees a lookup never observes a half installed
// definition.
type EventDefinitionRegistry interface {
	// Deploy installs def as the active definition for its (key,
	// tenant), assigning the next version number.  The previously
	// active version is retired but remains addressable by version.
	Deploy(ctx context.Context, def domain.EventDefinition) (domain.EventDefinition, error)

	// Retire clears the active pointer for (key, tenant).  Historical
	// versions are retained.
	Retire(ctx context.Context, key domain.EventKey, tenant domain.TenantID) error

	// LookupDefinition resolves (key, tenant) to the active
	// definition.  When no tenant specific definition exists and the
	// registry was built with the fallback flag enabled, the lookup
	// retries against the default tenant.  A tenant that has deployed
	// its own definition always gets its own - the exact match is
	// tried first.
	LookupDefinition(ctx context.Context, key domain.EventKey, tenant domain.TenantID) (domain.EventDefinition, error)

	// LookupDefinitionByVersion retrieves a historical version.
	LookupDefinitionByVersion(ctx context.Context, key domain.EventKey, tenant domain.TenantID, version int) (domain.EventDefinition, error)

	GetDefinitions(ctx context.Context, offset int, limit int) ([]domain.EventDefinition, int, error)
}

func NewEventDefinitionRegistry(eventRegistryImpl string, cfg *config.Config) (EventDefinitionRegistry, error) {
	switch eventRegistryImpl {
	case "local":
		return NewLocalEventDefinitionRegistry(cfg.FallbackToDefaultTenant), nil
	case "sql":
		database, err := db.InitializeDatabaseConnection(cfg)
		if err != nil {
			return nil, err
		}
		return NewSqlEventDefinitionRegistry(database, cfg.FallbackToDefaultTenant)
	default:
		return nil, errors.New("Invalid EventDefinitionRegistry impl requested")
	}
}
