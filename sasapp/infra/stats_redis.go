package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sasapp-gateway/sasapp/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCallStats grava contadores de chamadas ao legado em hashes do Redis.
//
// Chaves (prefixo padrão "sasapp:upstream"):
//
//	<prefix>:total                  outcome -> contagem (cumulativo, sem TTL)
//	<prefix>:minute:200601021504    outcome -> contagem (com TTL)
//	<prefix>:script                 "<script>:<outcome>" -> contagem
//	<prefix>:elapsed_ms             script -> soma de milissegundos
type RedisCallStats struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	bucket string // "minute" (padrão) ou "none"
}

type RedisStatsOption func(*RedisCallStats)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisCallStats) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisCallStats) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisCallStats) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func NewRedisCallStats(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisCallStats {
	s := &RedisCallStats{
		rdb:    rdb,
		prefix: "sasapp:upstream",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCallStats) Record(ctx context.Context, ev domain.CallEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	outcome := ev.Outcome
	if outcome == "" {
		outcome = domain.OutcomeErro
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", outcome, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, outcome, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if script := strings.TrimSpace(ev.Script); script != "" {
		pipe.HIncrBy(ctx, s.prefix+":script", script+":"+outcome, 1)
		pipe.HIncrBy(ctx, s.prefix+":elapsed_ms", script, ev.Elapsed.Milliseconds())
	}

	_, err := pipe.Exec(ctx)
	return err
}
