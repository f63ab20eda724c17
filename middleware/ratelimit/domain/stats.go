package domain

import (
	"context"
	"time"
)

// StatsEvent é uma decisão do rate limit.
//
// Path deve vir sem query e sem parâmetros de rota variáveis; o gateway só
// registra paths de /api/, que são fixos.
type StatsEvent struct {
	Kind    KeyKind
	Allowed bool
	// Wait é o Retry-After devolvido quando nega.
	Wait time.Duration

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste eventos. Erro é best-effort: nunca derruba a requisição.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
