package subscription_repository

import (
	"context"
	"errors"

	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/domain"

	"github.com/go-redis/redis/v8"
)

var (
	ErrDuplicateSubscription = errors.New("duplicate subscription id")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
)

// SubscriptionRegistrar is the mutation side of the subscription index.
// The process runtime registers a subscription whenever an execution
// reaches a waiting point and unregisters it when the execution leaves
// the waiting point.
type SubscriptionRegistrar interface {
	Register(ctx context.Context, sub domain.EventSubscription) error

	// Unregister removes a subscription.  An execution may complete
	// concurrently with an in-flight correlation attempt, so callers
	// treat ErrSubscriptionNotFound as a no-op.
	Unregister(ctx context.Context, id domain.SubscriptionID) error

	// ConsumeStartSubscription atomically marks a (subscription,
	// correlation key) pair as consumed.  It returns true for exactly
	// one caller across concurrent dispatches carrying the same pair.
	ConsumeStartSubscription(ctx context.Context, id domain.SubscriptionID, correlationKey string) (bool, error)
}

// SubscriptionLocator is the query side of the subscription index.  It
// narrows by the cheap keys only - correlation value comparison belongs
// to the correlation engine.
type SubscriptionLocator interface {
	// FindCandidates returns a snapshot of all subscriptions for
	// (eventKey, tenant) in registration order, oldest first.
	FindCandidates(ctx context.Context, eventKey domain.EventKey, tenant domain.TenantID) ([]domain.EventSubscription, error)

	GetSubscriptionsByTenant(ctx context.Context, tenant domain.TenantID, offset int, limit int) ([]domain.EventSubscription, int, error)
}

// SubscriptionRepository is both halves of the subscription index.
type SubscriptionRepository interface {
	SubscriptionRegistrar
	SubscriptionLocator
}

func NewSubscriptionRepository(subscriptionRepositoryImpl string, cfg *config.Config) (SubscriptionRepository, error) {
	switch subscriptionRepositoryImpl {
	case "local":
		return NewLocalSubscriptionRepository(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisSubscriptionRepository(client), nil
	default:
		return nil, errors.New("Invalid SubscriptionRepository impl requested")
	}
}
