package infra

import (
	"context"
	"sync"
	"time"

	"sasapp-gateway/sasapp/domain"
)

// Counters agrega desfechos de chamadas ao legado.
type Counters struct {
	Calls     int64            `json:"calls"`
	ByOutcome map[string]int64 `json:"by_outcome"`
	// TotalElapsed soma as durações. Média = TotalElapsed / Calls.
	TotalElapsed time.Duration `json:"total_elapsed"`
}

func (c Counters) clone() Counters {
	out := Counters{Calls: c.Calls, TotalElapsed: c.TotalElapsed, ByOutcome: make(map[string]int64, len(c.ByOutcome))}
	for k, v := range c.ByOutcome {
		out.ByOutcome[k] = v
	}
	return out
}

func (c *Counters) add(ev domain.CallEvent) {
	if c.ByOutcome == nil {
		c.ByOutcome = make(map[string]int64)
	}
	c.Calls++
	c.ByOutcome[ev.Outcome]++
	c.TotalElapsed += ev.Elapsed
}

// MemoryCallStats é uma implementação simples em memória.
//
// Não faz expiração. Os contadores só crescem até o processo reiniciar.
type MemoryCallStats struct {
	mu       sync.Mutex
	total    Counters
	byScript map[string]Counters
}

func NewMemoryCallStats() *MemoryCallStats {
	return &MemoryCallStats{byScript: make(map[string]Counters)}
}

func (s *MemoryCallStats) Record(_ context.Context, ev domain.CallEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)
	c := s.byScript[ev.Script]
	c.add(ev)
	s.byScript[ev.Script] = c
	return nil
}

// StatsSnapshot é o formato exposto em /internal/stats.
type StatsSnapshot struct {
	Total    Counters            `json:"total"`
	ByScript map[string]Counters `json:"by_script"`
}

func (s *MemoryCallStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := StatsSnapshot{Total: s.total.clone(), ByScript: make(map[string]Counters, len(s.byScript))}
	for k, v := range s.byScript {
		out.ByScript[k] = v.clone()
	}
	return out
}

// MultiCallStats repassa o evento para vários destinos; falhas não interrompem os demais.
type MultiCallStats []domain.CallStats

func (m MultiCallStats) Record(ctx context.Context, ev domain.CallEvent) error {
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
