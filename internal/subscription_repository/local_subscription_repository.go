package subscription_repository

import (
	"context"
	"sync"

	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

type bucketKey struct {
	eventKey domain.EventKey
	tenant   domain.TenantID
}

// subscriptionBucket holds the subscriptions for one (event key,
// tenant).  Each bucket carries its own mutex so dispatches for
// different keys or tenants never serialize against each other.
type subscriptionBucket struct {
	subscriptions []domain.EventSubscription
	consumed      map[string]struct{}
	sync.Mutex
}

func (b *subscriptionBucket) snapshot() []domain.EventSubscription {
	b.Lock()
	defer b.Unlock()

	candidates := make([]domain.EventSubscription, len(b.subscriptions))
	copy(candidates, b.subscriptions)
	return candidates
}

// LocalSubscriptionRepository keeps the subscription index in process
// memory.  The outer RWMutex only guards the bucket map and the id
// index - per bucket mutation happens under the bucket's own lock.
type LocalSubscriptionRepository struct {
	buckets map[bucketKey]*subscriptionBucket
	byId    map[domain.SubscriptionID]bucketKey
	sync.RWMutex
}

func NewLocalSubscriptionRepository() *LocalSubscriptionRepository {
	return &LocalSubscriptionRepository{
		buckets: make(map[bucketKey]*subscriptionBucket),
		byId:    make(map[domain.SubscriptionID]bucketKey),
	}
}

func (r *LocalSubscriptionRepository) getOrCreateBucket(bk bucketKey) *subscriptionBucket {
	r.Lock()
	defer r.Unlock()

	bucket, exists := r.buckets[bk]
	if !exists {
		bucket = &subscriptionBucket{consumed: make(map[string]struct{})}
		r.buckets[bk] = bucket
	}
	return bucket
}

func (r *LocalSubscriptionRepository) getBucket(bk bucketKey) (*subscriptionBucket, bool) {
	r.RLock()
	defer r.RUnlock()

	bucket, exists := r.buckets[bk]
	return bucket, exists
}

func (r *LocalSubscriptionRepository) Register(ctx context.Context, sub domain.EventSubscription) error {

	bk := bucketKey{eventKey: sub.EventKey, tenant: sub.TenantID}

	r.Lock()
	if _, exists := r.byId[sub.ID]; exists {
		r.Unlock()
		logger.Log.WithFields(logrus.Fields{"subscription_id": sub.ID}).Warn("Attempting to register duplicate subscription")
		return ErrDuplicateSubscription
	}
	r.byId[sub.ID] = bk
	bucket, exists := r.buckets[bk]
	if !exists {
		bucket = &subscriptionBucket{consumed: make(map[string]struct{})}
		r.buckets[bk] = bucket
	}
	r.Unlock()

	bucket.Lock()
	bucket.subscriptions = append(bucket.subscriptions, sub)
	bucket.Unlock()

	logger.Log.Printf("Registered a subscription (%s, %s, %s)", sub.ID, sub.EventKey, sub.TenantID)

	metrics.subscriptionRegisteredCounter.Inc()

	return nil
}

func (r *LocalSubscriptionRepository) Unregister(ctx context.Context, id domain.SubscriptionID) error {

	r.Lock()
	bk, exists := r.byId[id]
	if !exists {
		r.Unlock()
		return ErrSubscriptionNotFound
	}
	delete(r.byId, id)
	bucket := r.buckets[bk]
	r.Unlock()

	bucket.Lock()
	for i, sub := range bucket.subscriptions {
		if sub.ID == id {
			bucket.subscriptions = append(bucket.subscriptions[:i], bucket.subscriptions[i+1:]...)
			break
		}
	}
	bucket.Unlock()

	logger.Log.Printf("Unregistered a subscription (%s)", id)

	metrics.subscriptionUnregisteredCounter.Inc()

	return nil
}

func (r *LocalSubscriptionRepository) ConsumeStartSubscription(ctx context.Context, id domain.SubscriptionID, correlationKey string) (bool, error) {

	r.RLock()
	bk, exists := r.byId[id]
	r.RUnlock()
	if !exists {
		// Unregistered while the dispatch was in flight
		return false, nil
	}

	bucket, exists := r.getBucket(bk)
	if !exists {
		return false, nil
	}

	consumedKey := string(id) + ":" + correlationKey

	bucket.Lock()
	defer bucket.Unlock()

	if _, alreadyConsumed := bucket.consumed[consumedKey]; alreadyConsumed {
		return false, nil
	}

	bucket.consumed[consumedKey] = struct{}{}
	return true, nil
}

func (r *LocalSubscriptionRepository) FindCandidates(ctx context.Context, eventKey domain.EventKey, tenant domain.TenantID) ([]domain.EventSubscription, error) {

	bucket, exists := r.getBucket(bucketKey{eventKey: eventKey, tenant: tenant})
	if !exists {
		return []domain.EventSubscription{}, nil
	}

	return bucket.snapshot(), nil
}

func (r *LocalSubscriptionRepository) GetSubscriptionsByTenant(ctx context.Context, tenant domain.TenantID, offset int, limit int) ([]domain.EventSubscription, int, error) {

	r.RLock()
	buckets := make([]*subscriptionBucket, 0)
	for bk, bucket := range r.buckets {
		if bk.tenant == tenant {
			buckets = append(buckets, bucket)
		}
	}
	r.RUnlock()

	all := make([]domain.EventSubscription, 0)
	for _, bucket := range buckets {
		all = append(all, bucket.snapshot()...)
	}

	total := len(all)
	if offset >= total {
		return []domain.EventSubscription{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return all[offset:end], total, nil
}
