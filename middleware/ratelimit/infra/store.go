package infra

import (
	"context"
	"sync"
	"time"

	"sasapp-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Store guarda um token bucket por identidade. Cada tipo de chave pode ter a
// própria faixa (WithKindTier); sem faixa própria vale a faixa padrão.
type Store struct {
	mu      sync.Mutex
	buckets map[domain.Identity]*tracked

	def   domain.Tier
	tiers map[domain.KeyKind]domain.Tier

	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type tracked struct {
	b        bucket
	lastSeen time.Time
}

// bucket adapta *rate.Limiter ao domain.Limiter.
type bucket struct{ *rate.Limiter }

// AllowAt reserva um token; se ele não estiver disponível agora a reserva é
// desfeita e a espera volta como dica de Retry-After.
func (b bucket) AllowAt(now time.Time) (bool, time.Duration) {
	r := b.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	wait := r.DelayFrom(now)
	if wait == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, wait
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithKindTier dá uma faixa própria a um tipo de chave. rps <= 0 é ignorado.
func WithKindTier(kind domain.KeyKind, t domain.Tier) StoreOption {
	return func(s *Store) {
		if t.RPS <= 0 {
			return
		}
		if t.Burst <= 0 {
			t.Burst = s.def.Burst
		}
		s.tiers[kind] = t
	}
}

func withStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		buckets:      make(map[domain.Identity]*tracked),
		def:          domain.Tier{RPS: rps, Burst: burst},
		tiers:        make(map[domain.KeyKind]domain.Tier),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tier devolve a faixa efetiva de um tipo de chave.
func (s *Store) Tier(kind domain.KeyKind) domain.Tier {
	if t, ok := s.tiers[kind]; ok {
		return t
	}
	return s.def
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Sizes conta os buckets vivos por tipo de chave.
func (s *Store) Sizes() map[domain.KeyKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.KeyKind]int)
	for id := range s.buckets {
		out[id.Kind]++
	}
	return out
}

func (s *Store) Get(id domain.Identity) domain.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.buckets[id]; ok {
		t.lastSeen = now
		return t.b
	}
	tier := s.Tier(id.Kind)
	b := bucket{rate.NewLimiter(rate.Limit(tier.RPS), tier.Burst)}
	s.buckets[id] = &tracked{b: b, lastSeen: now}
	return b
}

// Cleanup descarta os buckets sem uso há mais de idleTTL.
func (s *Store) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.buckets {
		if t.lastSeen.Before(cutoff) {
			delete(s.buckets, id)
		}
	}
}

// StartJanitor roda Cleanup a cada cleanupEvery até o ctx encerrar.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(s.cleanupEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
