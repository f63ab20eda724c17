package application

import (
	"time"

	"sasapp-gateway/middleware/ratelimit/domain"
)

// Service aplica o limiter da chave e calcula o Retry-After.
//
// MinRetryAfter é o piso: o valor devolvido é o maior entre ele e a espera
// informada pelo limiter.
type Service struct {
	Store         domain.LimiterStore
	MinRetryAfter time.Duration
	Now           func() time.Time
}

func (s Service) Decide(id domain.Identity) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	lim := s.Store.Get(id)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	ok, wait := lim.AllowAt(now)
	if ok {
		return domain.Decision{Allowed: true}
	}

	floor := s.MinRetryAfter
	if floor <= 0 {
		floor = time.Second
	}
	return domain.Decision{Allowed: false, RetryAfter: max(floor, wait)}
}
