package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/spist/campus/core"
)

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

var _ core.Cache = (*redisCache)(nil)

// NewRedisCache connects to conf.Redis.Addr and pings it.
func NewRedisCache(ctx context.Context, conf *core.Config) (*redisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return &redisCache{rdb: rdb, prefix: conf.AppName + ":"}, nil
}

func (c *redisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "reading cache")
	}
	if err = json.Unmarshal([]byte(val), dst); err != nil {
		return false, errors.Wrap(err, "decoding cached value")
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding cache value")
	}
	return errors.Wrap(c.rdb.Set(ctx, c.prefix+key, data, ttl).Err(), "writing cache")
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefix + k
	}
	return errors.Wrap(c.rdb.Del(ctx, prefixed...).Err(), "deleting cache keys")
}

func (c *redisCache) Close() error {
	return c.rdb.Close()
}
