package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sasapp-gateway/sasapp/domain"
)

// SlotPool é um semáforo baseado em channel que protege o legado de rajadas.
type SlotPool struct {
	sem      chan struct{}
	inFlight atomic.Int64
}

// NewSlotPool cria um pool com capacidade max. Com max <= 0 devolve nil
// (sem limite); LegacyClient trata pool nil como ilimitado.
func NewSlotPool(max int) *SlotPool {
	if max <= 0 {
		return nil
	}
	return &SlotPool{sem: make(chan struct{}, max)}
}

func (p *SlotPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		p.inFlight.Add(1)
		var once sync.Once
		return func() {
			once.Do(func() {
				p.inFlight.Add(-1)
				<-p.sem
			})
		}, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *SlotPool) InFlight() int64 { return p.inFlight.Load() }

func (p *SlotPool) Cap() int { return cap(p.sem) }

// acquireSlot espera uma vaga por no máximo timeout (<= 0: até o ctx encerrar).
func acquireSlot(ctx context.Context, pool domain.SlotPool, timeout time.Duration) (func(), bool) {
	if pool == nil {
		return func() {}, true
	}
	if timeout <= 0 {
		return pool.Acquire(ctx)
	}
	acqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return pool.Acquire(acqCtx)
}
