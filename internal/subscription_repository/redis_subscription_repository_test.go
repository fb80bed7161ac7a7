package subscription_repository

import (
	"context"
	"testing"

	"github.com/FlowPlatform/flow-connector/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func buildRedisRepository(t *testing.T) *RedisSubscriptionRepository {
	server := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	return NewRedisSubscriptionRepository(client)
}

func TestRedisRepositoryRegisterAndFindCandidates(t *testing.T) {
	repo := buildRedisRepository(t)

	if err := repo.Register(context.TODO(), buildBoundSubscription("sub-1", "OrderPlaced", "tenant-a")); err != nil {
		t.Fatal("unexpected error ", err)
	}
	if err := repo.Register(context.TODO(), buildBoundSubscription("sub-2", "OrderPlaced", "tenant-a")); err != nil {
		t.Fatal("unexpected error ", err)
	}
	if err := repo.Register(context.TODO(), buildBoundSubscription("sub-3", "OrderPlaced", "tenant-b")); err != nil {
		t.Fatal("unexpected error ", err)
	}

	candidates, err := repo.FindCandidates(context.TODO(), "OrderPlaced", "tenant-a")
	if err != nil {
		t.Fatal("unexpected error ", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates for tenant-a, got %d", len(candidates))
	}

	if candidates[0].ID != "sub-1" || candidates[1].ID != "sub-2" {
		t.Fatalf("expected [sub-1 sub-2], got %v", candidates)
	}

	if candidates[0].Scope.Type != domain.BoundToScope || candidates[0].Scope.ExecutionRef != "execution-1" {
		t.Fatalf("expected the scope to round trip, got %v", candidates[0].Scope)
	}
}

func TestRedisRepositoryRejectsDuplicateId(t *testing.T) {
	repo := buildRedisRepository(t)

	if err := repo.Register(context.TODO(), buildBoundSubscription("sub-1", "OrderPlaced", "tenant-a")); err != nil {
		t.Fatal("unexpected error ", err)
	}

	err := repo.Register(context.TODO(), buildBoundSubscription("sub-1", "PaymentReceived", "tenant-b"))
	if err != ErrDuplicateSubscription {
		t.Fatalf("expected ErrDuplicateSubscription, got %v", err)
	}
}

func TestRedisRepositoryUnregister(t *testing.T) {
	repo := buildRedisRepository(t)

	repo.Register(context.TODO(), buildBoundSubscription("sub-1", "OrderPlaced", "tenant-a"))
	repo.Register(context.TODO(), buildBoundSubscription("sub-2", "OrderPlaced", "tenant-a"))

	if err := repo.Unregister(context.TODO(), "sub-1"); err != nil {
		t.Fatal("unexpected error ", err)
	}

	candidates, err := repo.FindCandidates(context.TODO(), "OrderPlaced", "tenant-a")
	if err != nil {
		t.Fatal("unexpected error ", err)
	}
	if len(candidates) != 1 || candidates[0].ID != "sub-2" {
		t.Fatalf("expected [sub-2], got %v", candidates)
	}

	if err := repo.Unregister(context.TODO(), "sub-1"); err != ErrSubscriptionNotFound {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestRedisRepositoryConsumeStartSubscription(t *testing.T) {
	repo := buildRedisRepository(t)

	repo.Register(context.TODO(), buildStartSubscription("sub-1", "OrderPlaced", "tenant-a", domain.UniquePerCorrelation))

	consumed, err := repo.ConsumeStartSubscription(context.TODO(), "sub-1", "correlation-key-1")
	if err != nil {
		t.Fatal("unexpected error ", err)
	}
	if !consumed {
		t.Fatal("expected the first consume to win")
	}

	consumed, err = repo.ConsumeStartSubscription(context.TODO(), "sub-1", "correlation-key-1")
	if err != nil {
		t.Fatal("unexpected error ", err)
	}
	if consumed {
		t.Fatal("expected the second consume for the same correlation to lose")
	}

	consumed, err = repo.ConsumeStartSubscription(context.TODO(), "sub-1", "correlation-key-2")
	if err != nil {
		t.Fatal("unexpected error ", err)
	}
	if !consumed {
		t.Fatal("expected a different correlation key to be consumable")
	}
}

func TestRedisRepositoryConsumedStateResetsOnReregister(t *testing.T) {
	repo := buildRedisRepository(t)

	repo.Register(context.TODO(), buildStartSubscription("sub-1", "OrderPlaced", "tenant-a", domain.UniquePerCorrelation))

	if consumed, _ := repo.ConsumeStartSubscription(context.TODO(), "sub-1", "correlation-key-1"); !consumed {
		t.Fatal("expected the first consume to win")
	}

	if err := repo.Unregister(context.TODO(), "sub-1"); err != nil {
		t.Fatal("unexpected error ", err)
	}

	repo.Register(context.TODO(), buildStartSubscription("sub-1", "OrderPlaced", "tenant-a", domain.UniquePerCorrelation))

	if consumed, _ := repo.ConsumeStartSubscription(context.TODO(), "sub-1", "correlation-key-1"); !consumed {
		t.Fatal("expected the consumed state to reset with the registration")
	}
}

func TestRedisRepositoryGetSubscriptionsByTenant(t *testing.T) {
	repo := buildRedisRepository(t)

	repo.Register(context.TODO(), buildBoundSubscription("sub-1", "OrderPlaced", "tenant-a"))
	repo.Register(context.TODO(), buildBoundSubscription("sub-2", "PaymentReceived", "tenant-a"))
	repo.Register(context.TODO(), buildBoundSubscription("sub-3", "OrderPlaced", "tenant-b"))

	subscriptions, total, err := repo.GetSubscriptionsByTenant(context.TODO(), "tenant-a", 0, 10)
	if err != nil {
		t.Fatal("unexpected error ", err)
	}

	if total != 2 || len(subscriptions) != 2 {
		t.Fatalf("expected 2 subscriptions for tenant-a, got %d (total %d)", len(subscriptions), total)
	}

	for _, sub := range subscriptions {
		if sub.TenantID != "tenant-a" {
			t.Fatalf("expected only tenant-a subscriptions, got %v", sub)
		}
	}
}
