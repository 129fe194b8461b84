package app

import (
	"bitwise74/waitlist-api/config"
	"context"
	"fmt"
	"time"

	"github.com/chenyahui/gin-cache/persist"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewCacheStore returns a redis backed response cache when an address is
// configured so every instance shares it. Otherwise responses are cached in
// memory per instance
func NewCacheStore(ctx context.Context, c config.Redis) (persist.CacheStore, error) {
	if c.Addr == "" {
		return persist.NewMemoryStore(time.Minute), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis, %w", err)
	}

	zap.L().Info("Connected to Redis", zap.String("addr", c.Addr))
	return persist.NewRedisStore(rdb), nil
}
