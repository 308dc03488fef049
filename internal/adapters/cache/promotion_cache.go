package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/observability"
)

// DefaultPromotionTTL bounds how stale a cached promotion may be
const DefaultPromotionTTL = time.Minute

// kv is the subset of the Redis client the cache uses
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// PromotionCache is a read-through cache in front of a ports.PromotionReader.
// Only found promotions are cached. Redis failures fall back to the underlying reader.
type PromotionCache struct {
	next   ports.PromotionReader
	client kv
	ttl    time.Duration
	logger ports.Logger
}

// NewPromotionCache wraps next with a Redis cache
func NewPromotionCache(next ports.PromotionReader, client kv, ttl time.Duration, logger ports.Logger) *PromotionCache {
	if ttl <= 0 {
		ttl = DefaultPromotionTTL
	}
	return &PromotionCache{next: next, client: client, ttl: ttl, logger: logger}
}

func promotionKey(accountID, code string) string {
	return fmt.Sprintf("billing:promotion:%s:%s", accountID, code)
}

// GetByCode returns the cached promotion or loads and caches it
func (c *PromotionCache) GetByCode(ctx context.Context, db ports.DBTX, accountID, code string) (*domain.Promotion, error) {
	key := promotionKey(accountID, code)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Promotion
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			observability.RecordPromotionCacheLookup("hit")
			return &p, nil
		}
		observability.RecordPromotionCacheLookup("error")
		c.logger.Warn("Discarding undecodable cached promotion", ports.String("key", key))
	case errors.Is(err, redis.Nil):
		observability.RecordPromotionCacheLookup("miss")
	default:
		observability.RecordPromotionCacheLookup("error")
		c.logger.Warn("Promotion cache read failed", ports.String("key", key), ports.Err(err))
	}

	p, err := c.next.GetByCode(ctx, db, accountID, code)
	if err != nil {
		return nil, err
	}

	if body, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
			c.logger.Warn("Promotion cache write failed", ports.String("key", key), ports.Err(err))
		}
	}
	return p, nil
}

var _ ports.PromotionReader = (*PromotionCache)(nil)
