package infra

import (
	"context"
	"strings"
	"time"

	"sasapp-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava as decisões de todas as instâncias do gateway.
//
//	<prefix>:total                 allowed, denied, wait_ms
//	<prefix>:kind:<kind>           allowed, denied, wait_ms
//	<prefix>:minute:<yyyymmddhhmm> "<kind>:allowed|denied" (com TTL)
//
// Por rota fica só na memória (MemoryStatsStore); aqui a cardinalidade é
// limitada pelo número de tipos de chave.
type RedisStatsStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	bucket string // "minute" (padrão) ou "none"
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsTTL vale para os hashes por minuto; os totais não expiram.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "sasapp:ratelimit",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	kind := ev.Kind
	if kind == "" {
		kind = domain.KindUnknown
	}
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}

	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, key := range []string{s.prefix + ":total", s.prefix + ":kind:" + string(kind)} {
			p.HIncrBy(ctx, key, outcome, 1)
			if !ev.Allowed && ev.Wait > 0 {
				p.HIncrBy(ctx, key, "wait_ms", ev.Wait.Milliseconds())
			}
		}

		if s.bucket != "minute" {
			return nil
		}
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		minute := s.prefix + ":minute:" + at.UTC().Format("200601021504")
		p.HIncrBy(ctx, minute, string(kind)+":"+outcome, 1)
		if s.ttl > 0 {
			p.Expire(ctx, minute, s.ttl)
		}
		return nil
	})
	return err
}
