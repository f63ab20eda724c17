package infra

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard compartilha as reservas entre réplicas usando SET NX PX.
type RedisGuard struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisGuard(rdb redis.Cmdable, prefix string) *RedisGuard {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "sasapp"
	}
	return &RedisGuard{rdb: rdb, prefix: prefix + ":dedupe:"}
}

func (g *RedisGuard) Reserve(ctx context.Context, key string, window time.Duration) (bool, error) {
	return g.rdb.SetNX(ctx, g.prefix+key, time.Now().Unix(), window).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, g.prefix+key).Err()
}
