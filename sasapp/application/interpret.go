package application

import (
	"net/http"
	"strconv"
	"strings"

	"sasapp-gateway/sasapp/domain"
)

const (
	msgRespostaInvalida = "Resposta inválida do servidor."
	msgOperacaoFalhou   = "Não foi possível concluir a operação."
)

var (
	successWords = map[string]bool{"sucesso": true, "success": true, "ok": true, "1": true, "true": true}
	failWords    = map[string]bool{"erro": true, "error": true, "falha": true, "fail": true, "0": true, "false": true}

	envelopeKeys = []string{"success", "status", "message", "mensagem", "msg", "erro", "error"}
)

// Interpret converte a resposta do legado no envelope do browser.
//
// Formatos conhecidos, em ordem: objeto com "success"; objeto com "status"
// textual; objeto com "erro"/"error" preenchido; array; objeto qualquer;
// texto puro "ok"/"sucesso". O resto cai no fallback da rota ou vira 502.
func Interpret(route domain.Route, reply domain.Reply) domain.Result {
	httpFailed := reply.StatusCode >= http.StatusBadRequest

	var parsed any
	if err := domain.DecodeLenient(reply.Body, &parsed); err != nil {
		return interpretText(route, string(domain.Scrub(reply.Body)), httpFailed)
	}

	switch v := parsed.(type) {
	case map[string]any:
		return interpretObject(route, v, httpFailed)
	case []any:
		if httpFailed {
			return invalidReply()
		}
		return ok(wrapList(route, v), route.Message)
	case string:
		// json_encode de uma string é texto como outro qualquer
		return interpretText(route, v, httpFailed)
	case nil:
		return fallbackOr(route, httpFailed, invalidReply())
	default:
		success, decided := truthy(v)
		switch {
		case httpFailed:
			return invalidReply()
		case decided && success:
			return ok(nil, route.Message)
		case decided:
			return businessFailure(route, "")
		default:
			return fallbackOr(route, httpFailed, invalidReply())
		}
	}
}

// interpretText trata corpo sem JSON: só "ok"/"sucesso"/"1"/"true" valem
// como sucesso.
func interpretText(route domain.Route, text string, httpFailed bool) domain.Result {
	if !httpFailed && successWords[strings.ToLower(strings.TrimSpace(text))] {
		return ok(nil, route.Message)
	}
	return fallbackOr(route, httpFailed, invalidReply())
}

func invalidReply() domain.Result {
	return domain.Result{Code: http.StatusBadGateway, Envelope: domain.Fail(msgRespostaInvalida)}
}

func interpretObject(route domain.Route, v map[string]any, httpFailed bool) domain.Result {
	success, decided := judge(v)
	msg := firstString(v, "message", "mensagem", "msg")

	if httpFailed {
		if msg == "" {
			msg = firstString(v, "erro", "error")
		}
		if msg == "" {
			return invalidReply()
		}
		return domain.Result{Code: http.StatusUnprocessableEntity, Envelope: domain.Fail(msg)}
	}

	if decided && !success {
		if msg == "" {
			msg = firstString(v, "erro", "error")
		}
		return businessFailure(route, msg)
	}

	if msg == "" {
		msg = route.Message
	}
	return ok(pickData(v), msg)
}

func businessFailure(route domain.Route, msg string) domain.Result {
	if route.Fallback == domain.FallbackEmptyList {
		return ok(emptyList(route), msg)
	}
	if msg == "" {
		msg = msgOperacaoFalhou
	}
	return domain.Result{Code: http.StatusUnprocessableEntity, Envelope: domain.Fail(msg)}
}

// judge decide sucesso/falha de um objeto. decided=false quando o objeto não
// traz nenhum marcador reconhecível.
func judge(v map[string]any) (success, decided bool) {
	if raw, ok := v["success"]; ok {
		if s, d := truthy(raw); d {
			return s, true
		}
	}
	if raw, ok := v["status"]; ok {
		if s, d := statusValue(raw); d {
			return s, true
		}
	}
	for _, k := range []string{"erro", "error"} {
		switch e := v[k].(type) {
		case string:
			if strings.TrimSpace(e) != "" && !failWords[strings.ToLower(strings.TrimSpace(e))] {
				return false, true
			}
		case bool:
			if e {
				return false, true
			}
		case map[string]any, []any:
			return false, true
		}
	}
	return false, false
}

// statusValue lê "status": texto como truthy; número só 0/1 ou código HTTP
// (2xx sucesso, 4xx/5xx falha). Outros números ficam indecididos.
func statusValue(raw any) (value, decided bool) {
	x, isNum := raw.(float64)
	if !isNum {
		return truthy(raw)
	}
	switch {
	case x == 0 || x == 1:
		return x == 1, true
	case x >= 200 && x < 300:
		return true, true
	case x >= 400 && x < 600:
		return false, true
	}
	return false, false
}

// truthy aceita bool, número 0/1 e as palavras de sucesso/falha.
func truthy(raw any) (value, decided bool) {
	switch x := raw.(type) {
	case bool:
		return x, true
	case float64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if successWords[s] {
			return true, true
		}
		if failWords[s] {
			return false, true
		}
	}
	return false, false
}

func firstString(v map[string]any, keys ...string) string {
	for _, k := range keys {
		switch x := v[k].(type) {
		case string:
			if s := strings.TrimSpace(x); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
	}
	return ""
}

// pickData usa "data"/"dados" quando existem; senão o próprio objeto sem as
// chaves de envelope.
func pickData(v map[string]any) any {
	for _, k := range []string{"data", "dados"} {
		if d, ok := v[k]; ok {
			return d
		}
	}
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = val
	}
	for _, k := range envelopeKeys {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func wrapList(route domain.Route, list []any) any {
	if route.ListKey != "" {
		return map[string]any{route.ListKey: list}
	}
	return list
}

func emptyList(route domain.Route) any {
	return wrapList(route, []any{})
}

func ok(data any, msg string) domain.Result {
	return domain.Result{Code: http.StatusOK, Envelope: domain.Ok(data, msg)}
}

// fallbackOr aplica o fallback da rota quando o legado respondeu algo inutilizável.
func fallbackOr(route domain.Route, httpFailed bool, def domain.Result) domain.Result {
	switch route.Fallback {
	case domain.FallbackAssumeSuccess:
		if httpFailed {
			return def
		}
		return ok(nil, route.Message)
	case domain.FallbackEmptyList:
		return ok(emptyList(route), route.Message)
	default:
		return def
	}
}
