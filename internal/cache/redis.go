package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trimclip/booking-service/internal/availability"
)

// RedisCache stores one JSON document per requested range and tracks the live
// keys of each barber in a set, so Invalidate can drop overlapping entries
// without a SCAN.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, barberID string, start, end time.Time, duration time.Duration) ([]availability.Day, bool, error) {
	raw, err := c.rdb.Get(ctx, entryKey(barberID, start, end, duration)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var days []availability.Day
	if err := json.Unmarshal(raw, &days); err != nil {
		// Corrupt entry: treat as a miss, it will be overwritten.
		return nil, false, nil
	}
	return days, true, nil
}

func (c *RedisCache) Set(ctx context.Context, barberID string, start, end time.Time, duration time.Duration, days []availability.Day) error {
	raw, err := json.Marshal(days)
	if err != nil {
		return err
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, entryKey(barberID, start, end, duration), raw, c.ttl)
	pipe.SAdd(ctx, barberSetKey(barberID), member(start, end, duration))
	// The key set outlives entries slightly; stale members are cheap to DEL.
	pipe.Expire(ctx, barberSetKey(barberID), c.ttl+time.Minute)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, barberID string, from, to time.Time) error {
	setKey := barberSetKey(barberID)
	members, err := c.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	for _, m := range members {
		if !memberOverlaps(m, from, to) {
			continue
		}
		pipe.Del(ctx, "avail:"+barberID+":"+m)
		pipe.SRem(ctx, setKey, m)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
