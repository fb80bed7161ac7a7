package subscription_repository

import (
	"context"
	"encoding/json"

	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	subscriptionKeyPrefix = "flow-connector:subscription:"
	bucketKeyPrefix       = "flow-connector:bucket:"
	tenantKeyPrefix       = "flow-connector:tenant:"
	consumedKeyPrefix     = "flow-connector:consumed:"
)

func subscriptionRedisKey(id domain.SubscriptionID) string {
	return subscriptionKeyPrefix + string(id)
}

func bucketRedisKey(eventKey domain.EventKey, tenant domain.TenantID) string {
	return bucketKeyPrefix + string(tenant) + ":" + string(eventKey)
}

func tenantRedisKey(tenant domain.TenantID) string {
	return tenantKeyPrefix + string(tenant)
}

func consumedRedisKey(id domain.SubscriptionID) string {
	return consumedKeyPrefix + string(id)
}

// RedisSubscriptionRepository keeps the subscription index in redis so
// multiple flow-connector pods share one view of who is waiting.  A
// SETNX claim on the subscription id rejects duplicates, a per bucket
// list preserves registration order, and SADD on the consumed set is
// the atomic first-wins consumption primitive.
type RedisSubscriptionRepository struct {
	client *redis.Client
}

func NewRedisSubscriptionRepository(client *redis.Client) *RedisSubscriptionRepository {
	return &RedisSubscriptionRepository{client: client}
}

func (r *RedisSubscriptionRepository) Register(ctx context.Context, sub domain.EventSubscription) error {

	log := logger.Log.WithFields(logrus.Fields{"subscription_id": sub.ID})

	subscriptionJson, err := json.Marshal(sub)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to marshal subscription")
		return err
	}

	claimed, err := r.client.SetNX(ctx, subscriptionRedisKey(sub.ID), subscriptionJson, 0).Result()
	if err != nil {
		logRedisError(log, err)
		return err
	}
	if !claimed {
		log.Warn("Attempting to register duplicate subscription")
		return ErrDuplicateSubscription
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, bucketRedisKey(sub.EventKey, sub.TenantID), string(sub.ID))
		pipe.SAdd(ctx, tenantRedisKey(sub.TenantID), string(sub.ID))
		return nil
	})
	if err != nil {
		logRedisError(log, err)
		return err
	}

	log.Printf("Registered a subscription (%s, %s, %s)", sub.ID, sub.EventKey, sub.TenantID)

	metrics.subscriptionRegisteredCounter.Inc()

	return nil
}

func (r *RedisSubscriptionRepository) Unregister(ctx context.Context, id domain.SubscriptionID) error {

	log := logger.Log.WithFields(logrus.Fields{"subscription_id": id})

	sub, err := r.getSubscription(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, subscriptionRedisKey(id))
		pipe.LRem(ctx, bucketRedisKey(sub.EventKey, sub.TenantID), 1, string(id))
		pipe.SRem(ctx, tenantRedisKey(sub.TenantID), string(id))
		pipe.Del(ctx, consumedRedisKey(id))
		return nil
	})
	if err != nil {
		logRedisError(log, err)
		return err
	}

	log.Printf("Unregistered a subscription (%s)", id)

	metrics.subscriptionUnregisteredCounter.Inc()

	return nil
}

func (r *RedisSubscriptionRepository) ConsumeStartSubscription(ctx context.Context, id domain.SubscriptionID, correlationKey string) (bool, error) {

	// SADD returns the number of members added - exactly one
	// concurrent caller sees 1 for a given (id, correlation key)
	added, err := r.client.SAdd(ctx, consumedRedisKey(id), correlationKey).Result()
	if err != nil {
		logRedisError(logger.Log.WithFields(logrus.Fields{"subscription_id": id}), err)
		return false, err
	}

	return added == 1, nil
}

func (r *RedisSubscriptionRepository) FindCandidates(ctx context.Context, eventKey domain.EventKey, tenant domain.TenantID) ([]domain.EventSubscription, error) {

	ids, err := r.client.LRange(ctx, bucketRedisKey(eventKey, tenant), 0, -1).Result()
	if err != nil {
		logRedisError(logger.Log.WithFields(logrus.Fields{"event_key": eventKey, "tenant": tenant}), err)
		return nil, err
	}

	return r.getSubscriptions(ctx, ids)
}

func (r *RedisSubscriptionRepository) GetSubscriptionsByTenant(ctx context.Context, tenant domain.TenantID, offset int, limit int) ([]domain.EventSubscription, int, error) {

	ids, err := r.client.SMembers(ctx, tenantRedisKey(tenant)).Result()
	if err != nil {
		logRedisError(logger.Log.WithFields(logrus.Fields{"tenant": tenant}), err)
		return nil, 0, err
	}

	subscriptions, err := r.getSubscriptions(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	total := len(subscriptions)
	if offset >= total {
		return []domain.EventSubscription{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return subscriptions[offset:end], total, nil
}

func (r *RedisSubscriptionRepository) getSubscription(ctx context.Context, id domain.SubscriptionID) (domain.EventSubscription, error) {

	subscriptionJson, err := r.client.Get(ctx, subscriptionRedisKey(id)).Result()
	if err == redis.Nil {
		return domain.EventSubscription{}, ErrSubscriptionNotFound
	}
	if err != nil {
		logRedisError(logger.Log.WithFields(logrus.Fields{"subscription_id": id}), err)
		return domain.EventSubscription{}, err
	}

	var sub domain.EventSubscription
	if err := json.Unmarshal([]byte(subscriptionJson), &sub); err != nil {
		return domain.EventSubscription{}, err
	}

	return sub, nil
}

func (r *RedisSubscriptionRepository) getSubscriptions(ctx context.Context, ids []string) ([]domain.EventSubscription, error) {

	subscriptions := make([]domain.EventSubscription, 0, len(ids))

	for _, id := range ids {
		sub, err := r.getSubscription(ctx, domain.SubscriptionID(id))
		if err == ErrSubscriptionNotFound {
			// Unregistered between the index read and the fetch
			continue
		}
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}

	return subscriptions, nil
}

func logRedisError(log *logrus.Entry, err error) {
	if err != nil && err != redis.Nil {
		metrics.redisErrorCounter.Inc()
		log.WithFields(logrus.Fields{"error": err}).Warn("An error occurred while communicating with redis")
	}
}
