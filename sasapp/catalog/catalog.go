// Package catalog tem as rotas embutidas do SasApp. Rotas adicionais ou
// substitutas vêm do arquivo ROUTES_FILE (ver infra.LoadRoutes).
package catalog

import (
	"time"

	"sasapp-gateway/sasapp/domain"
)

const (
	RouteConvenioLogin  = "convenio_login"
	RouteSasCredStatus  = "sascred_status"
	RouteAssociadoSaldo = "associado_saldo"
	RouteExtrato        = "associado_extrato"
	RouteAntecipacoes   = "antecipacao_historico"
)

func associado() []string { return []string{"matricula", "empregador"} }

// Routes devolve uma cópia nova do catálogo a cada chamada.
func Routes() []domain.Route {
	return []domain.Route{
		{
			Name:     "associado_login",
			Method:   "POST",
			Path:     "/api/associado/login",
			Script:   "app/login.php",
			Required: []string{"cpf", "senha"},
		},
		{
			Name:     RouteAssociadoSaldo,
			Method:   "POST",
			Path:     "/api/associado/saldo",
			Script:   "app/saldo.php",
			Required: associado(),
		},
		{
			Name:     RouteExtrato,
			Method:   "POST",
			Path:     "/api/associado/extrato",
			Script:   "app/extrato.php",
			Required: associado(),
			Fallback: domain.FallbackEmptyList,
			ListKey:  "lancamentos",
		},
		{
			Name:     "antecipacao_solicitar",
			Method:   "POST",
			Path:     "/api/antecipacao/solicitar",
			Script:   "app/antecipacao_grava.php",
			Required: []string{"matricula", "empregador", "valor", "chave_pix"},
			Rename:   map[string]string{"chavePix": "chave_pix"},
			Dedupe: &domain.DedupeRule{
				Fields: []string{"matricula", "empregador", "valor", "chave_pix"},
				Window: time.Minute,
			},
			Message: "Solicitação de antecipação enviada.",
		},
		{
			Name:     RouteAntecipacoes,
			Method:   "POST",
			Path:     "/api/antecipacao/historico",
			Script:   "app/antecipacao_lista.php",
			Required: associado(),
			Fallback: domain.FallbackEmptyList,
		},
		{
			Name:     "agendamento_criar",
			Method:   "POST",
			Path:     "/api/agendamento/criar",
			Script:   "app/agendamento_grava.php",
			Required: []string{"matricula", "cod_convenio", "data", "hora"},
			Dedupe:   &domain.DedupeRule{Fields: []string{"matricula", "cod_convenio", "data", "hora"}},
			Fallback: domain.FallbackAssumeSuccess,
			Message:  "Agendamento registrado.",
		},
		{
			Name:     "agendamento_listar",
			Method:   "POST",
			Path:     "/api/agendamento/listar",
			Script:   "app/agendamento_lista.php",
			Required: []string{"matricula"},
			Fallback: domain.FallbackEmptyList,
		},
		{
			Name:     "sascred_adesao",
			Method:   "POST",
			Path:     "/api/sascred/adesao",
			Script:   "app/sascred_adesao.php",
			Encoding: domain.EncodingMultipart,
			Required: []string{"matricula", "empregador", "cpf"},
			Dedupe:   &domain.DedupeRule{Fields: []string{"matricula", "empregador"}},
			Message:  "Adesão enviada. Verifique seu e-mail para assinar o contrato.",
		},
		{
			Name:     RouteSasCredStatus,
			Method:   "GET",
			Path:     "/api/sascred/status",
			Script:   "app/sascred_status.php",
			Encoding: domain.EncodingQuery,
			Required: []string{"token"},
		},
		{
			Name:     RouteConvenioLogin,
			Method:   "POST",
			Path:     "/api/convenio/login",
			Script:   "convenio/login.php",
			Required: []string{"usuario", "senha"},
		},
		{
			Name:     "convenio_lancamentos",
			Method:   "POST",
			Path:     "/api/convenio/lancamentos",
			Script:   "convenio/lancamentos.php",
			Session:  true,
			Fallback: domain.FallbackEmptyList,
			ListKey:  "lancamentos",
		},
		{
			Name:     "convenio_venda",
			Method:   "POST",
			Path:     "/api/convenio/venda",
			Script:   "convenio/venda_grava.php",
			Session:  true,
			Required: []string{"matricula", "valor", "parcelas"},
			Dedupe:   &domain.DedupeRule{Fields: []string{"cod_convenio", "matricula", "valor", "parcelas"}},
			Message:  "Venda registrada.",
		},
		{
			Name:     "convenio_estorno",
			Method:   "POST",
			Path:     "/api/convenio/estorno",
			Script:   "convenio/estorno.php",
			Session:  true,
			Required: []string{"lancamento"},
			Dedupe:   &domain.DedupeRule{Fields: []string{"cod_convenio", "lancamento"}},
		},
	}
}

// Find procura uma rota pelo nome.
func Find(routes []domain.Route, name string) (domain.Route, bool) {
	for _, r := range routes {
		if r.Name == name {
			return r, true
		}
	}
	return domain.Route{}, false
}
