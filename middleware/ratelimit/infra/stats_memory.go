package infra

import (
	"context"
	"sync"

	"sasapp-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	// WaitMs soma o Retry-After devolvido nas negações.
	WaitMs int64 `json:"wait_ms"`
}

func (c *Counters) add(ev domain.StatsEvent) {
	if ev.Allowed {
		c.Allowed++
		return
	}
	c.Denied++
	c.WaitMs += ev.Wait.Milliseconds()
}

// MemoryStatsStore conta decisões por rota e por tipo de identidade.
// Não expira nada.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKind  map[domain.KeyKind]Counters
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKind:  make(map[domain.KeyKind]Counters),
	}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byRoute[route]
	c.add(ev)
	s.byRoute[route] = c

	k := s.byKind[ev.Kind]
	k.add(ev)
	s.byKind[ev.Kind] = k
	return nil
}

// Snapshot é o formato exposto junto das estatísticas do legado.
type Snapshot struct {
	Total   Counters                    `json:"total"`
	ByRoute map[string]Counters         `json:"by_route"`
	ByKind  map[domain.KeyKind]Counters `json:"by_kind"`
}

func (s *MemoryStatsStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Total:   s.total,
		ByRoute: make(map[string]Counters, len(s.byRoute)),
		ByKind:  make(map[domain.KeyKind]Counters, len(s.byKind)),
	}
	for k, v := range s.byRoute {
		out.ByRoute[k] = v
	}
	for k, v := range s.byKind {
		out.ByKind[k] = v
	}
	return out
}

// MultiStatsStore repassa o evento para todos; devolve o primeiro erro.
type MultiStatsStore []domain.StatsStore

func (m MultiStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
