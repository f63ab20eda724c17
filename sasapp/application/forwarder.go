package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"sasapp-gateway/sasapp/domain"

	"github.com/rs/zerolog"
)

// DefaultDedupeWindow é a janela de supressão quando a rota não define uma.
const DefaultDedupeWindow = 60 * time.Second

// Input é o payload do browser já normalizado em campos e anexos.
type Input struct {
	Fields url.Values
	Files  []domain.File
}

// Forwarder executa o pipeline comum a todas as rotas: valida, remodela,
// suprime duplicidade, chama o legado e interpreta a resposta.
//
// Required e Dedupe.Fields usam os nomes já remodelados (nomes do PHP).
//
// Ele não sabe nada sobre HTTP do lado do browser, apenas devolve o envelope
// e o código a usar.
type Forwarder struct {
	Upstream     domain.Upstream
	Guard        domain.DuplicateGuard
	DedupeWindow time.Duration
	Log          zerolog.Logger
}

func (f Forwarder) Forward(ctx context.Context, route domain.Route, in Input) (domain.Result, error) {
	fields := Reshape(route, in.Fields)
	if missing := MissingFields(fields, route.Required); len(missing) > 0 {
		return domain.Result{}, &domain.ValidationError{Missing: missing}
	}

	release, err := f.reserve(ctx, route, fields)
	if err != nil {
		return domain.Result{}, err
	}

	reply, err := f.Upstream.Do(ctx, domain.Call{
		Method:   route.UpstreamMethod(),
		Script:   route.Script,
		Encoding: route.Encoding,
		Fields:   fields,
		Files:    in.Files,
	})
	if err != nil {
		var ue *domain.UpstreamError
		if errors.As(err, &ue) && ue.Reached() {
			return Interpret(route, reply), nil
		}
		// o legado não recebeu a submissão: libera para o usuário tentar de novo
		release()
		return f.unreachable(route, err)
	}
	return Interpret(route, reply), nil
}

func (f Forwarder) unreachable(route domain.Route, err error) (domain.Result, error) {
	switch route.Fallback {
	case domain.FallbackAssumeSuccess:
		f.Log.Warn().Err(err).Str("rota", route.Name).Msg("legado indisponível, assumindo sucesso")
		return ok(nil, route.Message), nil
	case domain.FallbackEmptyList:
		f.Log.Warn().Err(err).Str("rota", route.Name).Msg("legado indisponível, lista vazia")
		return ok(emptyList(route), route.Message), nil
	default:
		return domain.Result{}, err
	}
}

// reserve aplica a regra de duplicidade da rota. Devolve a função que
// desfaz a reserva (no-op quando a rota não deduplica).
func (f Forwarder) reserve(ctx context.Context, route domain.Route, fields url.Values) (func(), error) {
	noop := func() {}
	if route.Dedupe == nil || f.Guard == nil {
		return noop, nil
	}

	window := route.Dedupe.Window
	if window <= 0 {
		window = f.DedupeWindow
	}
	if window <= 0 {
		window = DefaultDedupeWindow
	}

	key := DuplicateKey(route.Name, fields, route.Dedupe.Fields)
	okReserve, err := f.Guard.Reserve(ctx, key, window)
	if err != nil {
		// guard fora do ar não bloqueia a operação
		f.Log.Error().Err(err).Str("rota", route.Name).Msg("falha no guard de duplicidade")
		return noop, nil
	}
	if !okReserve {
		f.Log.Info().Str("rota", route.Name).Dur("janela", window).Msg("submissão duplicada suprimida")
		return nil, &domain.DuplicateError{Window: window}
	}

	return func() {
		if err := f.Guard.Release(context.WithoutCancel(ctx), key); err != nil {
			f.Log.Warn().Err(err).Str("rota", route.Name).Msg("falha ao liberar reserva")
		}
	}, nil
}

// MissingFields devolve os obrigatórios ausentes ou em branco, na ordem declarada.
func MissingFields(fields url.Values, required []string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(fields.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Reshape copia os campos aplicando Rename (nome do browser -> nome do PHP)
// e acrescentando os Static da rota. Static sempre vence.
func Reshape(route domain.Route, in url.Values) url.Values {
	out := make(url.Values, len(in)+len(route.Static))
	for k, vals := range in {
		name := k
		if to, ok := route.Rename[k]; ok && to != "" {
			name = to
		}
		for _, v := range vals {
			out.Add(name, v)
		}
	}
	for k, v := range route.Static {
		out.Set(k, v)
	}
	return out
}

// DuplicateKey é o hash dos campos que identificam uma submissão.
// Os nomes são os já remodelados (nomes do PHP).
func DuplicateKey(routeName string, fields url.Values, names []string) string {
	h := sha256.New()
	h.Write([]byte(routeName))
	for _, n := range names {
		h.Write([]byte{0})
		h.Write([]byte(n))
		h.Write([]byte{'='})
		h.Write([]byte(strings.ToLower(strings.TrimSpace(fields.Get(n)))))
	}
	return hex.EncodeToString(h.Sum(nil))
}
