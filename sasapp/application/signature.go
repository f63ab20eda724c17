package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"sasapp-gateway/sasapp/domain"

	"github.com/rs/zerolog"
)

// WebhookEvent é o corpo enviado pela ZapSign. A forma é aceita como vem,
// sem verificação de assinatura.
type WebhookEvent struct {
	EventType string `json:"event_type"`
	Token     string `json:"token"`
	DocToken  string `json:"doc_token"`
	Status    string `json:"status"`
	Signer    *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"signer_who_signed"`
}

// SignatureService mantém o status de assinatura dos documentos SasCred.
//
// Fontes do status: webhook (push) e o script de consulta do legado (pull).
type SignatureService struct {
	store     domain.SignatureStore
	upstream  domain.Upstream
	check     domain.Route
	notifier  *Notifier
	interval  time.Duration
	maxChecks int
	log       zerolog.Logger
}

type SignatureOption func(*SignatureService)

// WithPolling define o intervalo entre consultas e o total de consultas de Await.
func WithPolling(interval time.Duration, maxChecks int) SignatureOption {
	return func(s *SignatureService) {
		if interval > 0 {
			s.interval = interval
		}
		if maxChecks > 0 {
			s.maxChecks = maxChecks
		}
	}
}

func WithSignatureLogger(l zerolog.Logger) SignatureOption {
	return func(s *SignatureService) { s.log = l }
}

func NewSignatureService(store domain.SignatureStore, upstream domain.Upstream, check domain.Route, notifier *Notifier, opts ...SignatureOption) *SignatureService {
	if notifier == nil {
		notifier = NewNotifier()
	}
	s := &SignatureService{
		store:     store,
		upstream:  upstream,
		check:     check,
		notifier:  notifier,
		interval:  5 * time.Second,
		maxChecks: 24,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SignatureService) HandleWebhook(ctx context.Context, ev WebhookEvent) (domain.SignatureStatus, error) {
	token := strings.TrimSpace(ev.DocToken)
	if token == "" {
		token = strings.TrimSpace(ev.Token)
	}
	if token == "" {
		return domain.SignatureStatus{}, &domain.ValidationError{Missing: []string{"token"}}
	}

	state := domain.ParseSignatureState(ev.EventType)
	if state == domain.SignaturePending {
		state = domain.ParseSignatureState(ev.Status)
	}

	st := domain.SignatureStatus{DocToken: token, Status: state, UpdatedAt: time.Now()}
	if ev.Signer != nil {
		st.Signer = ev.Signer.Email
	}

	// eventos podem chegar fora de ordem: um estado final não volta a pendente
	if prev, ok, err := s.store.Get(ctx, token); err == nil && ok && prev.IsFinal() && !st.IsFinal() {
		s.log.Debug().Str("doc", token).Str("evento", ev.EventType).Msg("evento ignorado, documento já finalizado")
		return prev, nil
	}

	if err := s.store.Put(ctx, st); err != nil {
		return domain.SignatureStatus{}, fmt.Errorf("gravando status de %s: %w", token, err)
	}
	s.notifier.Publish(st)
	s.log.Info().Str("doc", token).Str("status", string(st.Status)).Msg("webhook de assinatura")
	return st, nil
}

// Status devolve o status guardado quando final; senão consulta o legado.
// Com o legado fora, devolve o último status conhecido junto com o erro.
func (s *SignatureService) Status(ctx context.Context, token string) (domain.SignatureStatus, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.SignatureStatus{}, &domain.ValidationError{Missing: []string{"token"}}
	}

	prev, found, err := s.store.Get(ctx, token)
	if err != nil {
		s.log.Warn().Err(err).Str("doc", token).Msg("falha lendo status de assinatura")
	}
	if found && prev.IsFinal() {
		return prev, nil
	}
	if !found {
		prev = domain.SignatureStatus{DocToken: token, Status: domain.SignaturePending}
	}

	st, err := s.fetch(ctx, token)
	if err != nil {
		return prev, err
	}
	if st.IsFinal() {
		if err := s.store.Put(ctx, st); err != nil {
			s.log.Warn().Err(err).Str("doc", token).Msg("falha gravando status de assinatura")
		}
		s.notifier.Publish(st)
	}
	return st, nil
}

func (s *SignatureService) fetch(ctx context.Context, token string) (domain.SignatureStatus, error) {
	reply, err := s.upstream.Do(ctx, domain.Call{
		Method:   s.check.UpstreamMethod(),
		Script:   s.check.Script,
		Encoding: s.check.Encoding,
		Fields:   Reshape(s.check, url.Values{"token": {token}}),
	})
	if err != nil {
		return domain.SignatureStatus{}, err
	}

	var body map[string]any
	if err := domain.DecodeLenient(reply.Body, &body); err != nil {
		return domain.SignatureStatus{}, fmt.Errorf("consulta de assinatura %s: %w", token, err)
	}

	// o legado responde {"status":"assinado"} ou {"assinado":true}; às vezes dentro de "data"
	if inner, ok := body["data"].(map[string]any); ok {
		body = inner
	}
	state := domain.SignaturePending
	if v, ok := body["assinado"].(bool); ok && v {
		state = domain.SignatureSigned
	} else if raw, ok := body["status_assinatura"].(string); ok {
		state = domain.ParseSignatureState(raw)
	} else if raw, ok := body["status"].(string); ok {
		state = domain.ParseSignatureState(raw)
	}
	return domain.SignatureStatus{DocToken: token, Status: state, UpdatedAt: time.Now()}, nil
}

// Await espera o documento chegar a um estado final. Consulta o legado a cada
// intervalo, no máximo maxChecks vezes (incluindo a primeira), e retorna antes
// se um webhook chegar. Sem estado final, retorna o último status conhecido.
func (s *SignatureService) Await(ctx context.Context, token string) (domain.SignatureStatus, error) {
	updates, cancel := s.notifier.Subscribe(strings.TrimSpace(token))
	defer cancel()

	st, err := s.Status(ctx, token)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return st, err
		}
		s.log.Debug().Err(err).Str("doc", token).Msg("consulta de assinatura falhou, seguindo")
	}
	if st.IsFinal() {
		return st, nil
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for checks := 1; checks < s.maxChecks; {
		select {
		case <-ctx.Done():
			return st, nil
		case upd := <-updates:
			if upd.IsFinal() {
				return upd, nil
			}
		case <-t.C:
			checks++
			next, err := s.Status(ctx, token)
			if err != nil {
				s.log.Debug().Err(err).Str("doc", token).Int("consulta", checks).Msg("consulta de assinatura falhou")
				continue
			}
			st = next
			if st.IsFinal() {
				return st, nil
			}
		}
	}
	return st, nil
}
