package domain

import "time"

type Key string

// KeyKind diz de onde veio a identidade do cliente. Vai para as estatísticas
// no lugar da chave crua, que tem cardinalidade alta.
type KeyKind string

const (
	KindHeader   KeyKind = "header"
	KindConvenio KeyKind = "convenio"
	KindIP       KeyKind = "ip"
	KindUnknown  KeyKind = "desconhecido"
)

// Identity é a chave de rate limit de uma requisição.
type Identity struct {
	Key  Key
	Kind KeyKind
}

// Limiter decide se uma ação é permitida em now. Quando nega, wait é quanto
// falta para o próximo token (0 se não souber).
type Limiter interface {
	AllowAt(now time.Time) (ok bool, wait time.Duration)
}

// Tier é a taxa aplicada a um tipo de chave.
type Tier struct {
	RPS   float64
	Burst int
}

// LimiterStore obtém o limiter de uma identidade. O tipo da chave escolhe
// a faixa: a mesma Key com Kind diferente é outro bucket.
type LimiterStore interface {
	Get(Identity) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter vai para o header Retry-After quando bloqueia.
	RetryAfter time.Duration
}
