package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"sasapp-gateway/sasapp/domain"

	"github.com/redis/go-redis/v9"
)

// MemorySignatureStore guarda status de assinatura no processo.
type MemorySignatureStore struct {
	mu    sync.RWMutex
	items map[string]domain.SignatureStatus
}

func NewMemorySignatureStore() *MemorySignatureStore {
	return &MemorySignatureStore{items: make(map[string]domain.SignatureStatus)}
}

func (s *MemorySignatureStore) Get(_ context.Context, docToken string) (domain.SignatureStatus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.items[docToken]
	return st, ok, nil
}

func (s *MemorySignatureStore) Put(_ context.Context, st domain.SignatureStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[st.DocToken] = st
	return nil
}

var _ domain.SignatureStore = (*MemorySignatureStore)(nil)

// RedisSignatureStore guarda o status como JSON com TTL.
type RedisSignatureStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisSignatureStore(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisSignatureStore {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "sasapp"
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisSignatureStore{rdb: rdb, prefix: prefix + ":assinatura:", ttl: ttl}
}

func (s *RedisSignatureStore) Get(ctx context.Context, docToken string) (domain.SignatureStatus, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+docToken).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SignatureStatus{}, false, nil
	}
	if err != nil {
		return domain.SignatureStatus{}, false, err
	}

	var st domain.SignatureStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.SignatureStatus{}, false, fmt.Errorf("status de assinatura corrompido: %w", err)
	}
	return st, true, nil
}

func (s *RedisSignatureStore) Put(ctx context.Context, st domain.SignatureStatus) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+st.DocToken, raw, s.ttl).Err()
}

var _ domain.SignatureStore = (*RedisSignatureStore)(nil)
