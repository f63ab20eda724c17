package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrSessionMissing = errors.New("sessão de convênio ausente")
	ErrSessionInvalid = errors.New("sessão de convênio inválida")
	ErrNotFound       = errors.New("não encontrado")
	ErrBadPayload     = errors.New("payload inválido")
)

// ValidationError lista os campos obrigatórios ausentes ou vazios.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "campos obrigatórios ausentes: " + strings.Join(e.Missing, ", ")
}

// DuplicateError indica uma submissão repetida dentro da janela de supressão.
type DuplicateError struct {
	Window time.Duration
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("solicitação duplicada dentro de %s", e.Window)
}

type UpstreamKind string

const (
	KindTimeout     UpstreamKind = "timeout"
	KindUnavailable UpstreamKind = "indisponivel"
	KindStatus      UpstreamKind = "status"
	KindBusy        UpstreamKind = "ocupado"
)

// UpstreamError é qualquer falha ao falar com o backend legado.
//
// Para KindStatus o corpo da resposta ainda pode ter sido lido (ver Reply).
type UpstreamError struct {
	Kind       UpstreamKind
	Script     string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("legado %s: %s", e.Script, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Reached informa se o legado chegou a responder (mesmo com erro HTTP).
func (e *UpstreamError) Reached() bool { return e.Kind == KindStatus }

// HTTPStatus traduz um erro do domínio para o status HTTP devolvido ao browser.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		de *DuplicateError
		ue *UpstreamError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &de):
		return http.StatusConflict
	case errors.Is(err, ErrSessionMissing), errors.Is(err, ErrSessionInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadPayload):
		return http.StatusBadRequest
	case errors.As(err, &ue):
		switch ue.Kind {
		case KindTimeout:
			return http.StatusGatewayTimeout
		case KindBusy:
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage devolve o texto exibido ao usuário. Nunca repete o corpo do legado.
func PublicMessage(err error) string {
	var (
		ve *ValidationError
		de *DuplicateError
		ue *UpstreamError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "Preencha os campos obrigatórios: " + strings.Join(ve.Missing, ", ")
	case errors.As(err, &de):
		return "Solicitação já enviada. Aguarde alguns instantes antes de tentar novamente."
	case errors.Is(err, ErrSessionMissing), errors.Is(err, ErrSessionInvalid):
		return "Sessão expirada. Faça login novamente."
	case errors.Is(err, ErrNotFound):
		return "Registro não encontrado."
	case errors.Is(err, ErrBadPayload):
		return "Requisição inválida."
	case errors.As(err, &ue):
		switch ue.Kind {
		case KindTimeout:
			return "O servidor demorou para responder. Tente novamente."
		case KindBusy:
			return "Servidor ocupado. Tente novamente em instantes."
		default:
			return "Não foi possível comunicar com o servidor."
		}
	default:
		return "Erro interno."
	}
}
