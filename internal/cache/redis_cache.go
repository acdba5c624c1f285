package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "reminder:call:"

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ CallCache = (*RedisCache)(nil)

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type completedValue struct {
	CallSID     string    `json:"callSid"`
	CompletedAt time.Time `json:"completedAt"`
}

func key(reminderID string) string {
	return keyPrefix + reminderID
}

func (c *RedisCache) StoreCompleted(ctx context.Context, reminderID, callSID string, completedAt time.Time) error {
	b, err := json.Marshal(completedValue{
		CallSID:     callSID,
		CompletedAt: completedAt.UTC(),
	})
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key(reminderID), b, c.ttl).Err()
}

// LookupCompleted returns the cached call SID, or ok=false on a miss.
func (c *RedisCache) LookupCompleted(ctx context.Context, reminderID string) (callSID string, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, key(reminderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var v completedValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false, err
	}
	return v.CallSID, true, nil
}
