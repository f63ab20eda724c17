package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard é o guard de duplicidade local ao processo.
//
// Cada chave guarda o instante em que a reserva expira. Reinício do processo
// zera tudo; para várias réplicas use RedisGuard.
type MemoryGuard struct {
	mu           sync.Mutex
	entries      map[string]time.Time
	cleanupEvery time.Duration
	now          func() time.Time
}

type GuardOption func(*MemoryGuard)

func WithGuardCleanupEvery(d time.Duration) GuardOption {
	return func(g *MemoryGuard) { g.cleanupEvery = d }
}

// WithGuardClock troca o relógio (testes).
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *MemoryGuard) { g.now = now }
}

func NewMemoryGuard(opts ...GuardOption) *MemoryGuard {
	g := &MemoryGuard{
		entries:      make(map[string]time.Time),
		cleanupEvery: time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MemoryGuard) Reserve(_ context.Context, key string, window time.Duration) (bool, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.entries[key] = now.Add(window)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
	return nil
}

func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Cleanup remove reservas vencidas.
func (g *MemoryGuard) Cleanup() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, exp := range g.entries {
		if !now.Before(exp) {
			delete(g.entries, k)
		}
	}
}

// StartJanitor inicia a limpeza periódica. Pare cancelando o contexto.
func (g *MemoryGuard) StartJanitor(ctx context.Context) {
	if g.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(g.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.Cleanup()
			}
		}
	}()
}
