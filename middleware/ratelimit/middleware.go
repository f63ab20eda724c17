package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"sasapp-gateway/middleware/ratelimit/application"
	"sasapp-gateway/middleware/ratelimit/domain"
)

const rejectMessage = "Muitas requisições. Aguarde alguns segundos e tente novamente."

type KeyFunc func(r *http.Request) domain.Identity

// KeyOptions controla a extração da identidade.
//
// SessionCookie e SessionKey juntos habilitam a chave por convênio: o valor
// do cookie passa por SessionKey e, se reconhecido, vira "convenio:<id>@<ip>".
// O cookie não é assinado, então o IP entra na chave: um cod_convenio alheio
// não consome o bucket do convênio verdadeiro em outro IP.
type KeyOptions struct {
	Header        string
	TrustXFF      bool
	SessionCookie string
	SessionKey    func(cookie string) (string, bool)
}

type Options struct {
	Store domain.LimiterStore
	Stats domain.StatsStore
	KeyFn KeyFunc
	Keys  KeyOptions
	// Skip deixa a requisição passar sem consumir token (ex.: /healthz).
	Skip                func(r *http.Request) bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	// Reject responde a requisição bloqueada: status 429 e corpo. Retry-After
	// já está no header. Padrão: http.Error com texto puro.
	Reject func(w http.ResponseWriter)
}

// tierInfo é implementado por stores que sabem a faixa de cada tipo de chave.
type tierInfo interface {
	Tier(domain.KeyKind) domain.Tier
}

func DefaultKeyFunc(o KeyOptions) KeyFunc {
	return func(r *http.Request) domain.Identity {
		if o.Header != "" {
			if v := strings.TrimSpace(r.Header.Get(o.Header)); v != "" {
				return domain.Identity{Key: domain.Key(v), Kind: domain.KindHeader}
			}
		}

		ip := clientIP(r, o.TrustXFF)
		if o.SessionCookie != "" && o.SessionKey != nil && ip.Kind == domain.KindIP {
			if c, err := r.Cookie(o.SessionCookie); err == nil {
				if id, ok := o.SessionKey(c.Value); ok {
					return domain.Identity{Key: domain.Key("convenio:" + id + "@" + string(ip.Key)), Kind: domain.KindConvenio}
				}
			}
		}
		return ip
	}
}

func clientIP(r *http.Request, trustXFF bool) domain.Identity {
	if trustXFF {
		// primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return domain.Identity{Key: domain.Key(ip), Kind: domain.KindIP}
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return domain.Identity{Key: domain.Key(host), Kind: domain.KindIP}
	}
	if r.RemoteAddr != "" {
		return domain.Identity{Key: domain.Key(r.RemoteAddr), Kind: domain.KindIP}
	}
	return domain.Identity{Key: "unknown", Kind: domain.KindUnknown}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.Keys)
	}
	if opts.Reject == nil {
		opts.Reject = writeReject
	}
	svc := application.Service{
		Store:         opts.Store,
		MinRetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Skip != nil && opts.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			id := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", string(id.Key))
				if ti, ok := opts.Store.(tierInfo); ok {
					tier := ti.Tier(id.Kind)
					w.Header().Set("X-RateLimit-RPS", formatFloat(tier.RPS))
					w.Header().Set("X-RateLimit-Burst", formatInt(tier.Burst))
				}
			}

			dec := svc.Decide(id)
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Kind:    id.Kind,
					Allowed: dec.Allowed,
					Wait:    dec.RetryAfter,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				opts.Reject(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeReject(w http.ResponseWriter) {
	http.Error(w, rejectMessage, http.StatusTooManyRequests)
}
