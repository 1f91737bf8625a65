package cachesvc

import (
	"context"

	"github.com/spist/campus/core"
)

// NewCache returns a redis cache when conf.Redis.Addr is set, an in-memory one otherwise.
func NewCache(ctx context.Context, conf *core.Config, logger core.Logger) core.Cache {
	if conf.Redis.Addr == "" {
		return NewMemoryCache()
	}
	c, err := NewRedisCache(ctx, conf)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory cache", err)
		return NewMemoryCache()
	}
	return c
}
