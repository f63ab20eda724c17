package application

import (
	"context"
	"net/http"
	"net/url"

	"sasapp-gateway/sasapp/domain"

	"golang.org/x/sync/errgroup"
)

// DashboardSection é uma das rotas irmãs consultadas para o resumo.
type DashboardSection struct {
	Name  string
	Route domain.Route
}

// SectionResult segue a semântica de "allSettled": cada seção diz se deu certo.
type SectionResult struct {
	Ok   bool   `json:"ok"`
	Data any    `json:"data,omitempty"`
	Erro string `json:"erro,omitempty"`
}

// Dashboard monta o resumo do associado consultando as seções em paralelo.
type Dashboard struct {
	Forwarder Forwarder
	Sections  []DashboardSection
	Required  []string
}

// Resumo nunca falha por causa de uma seção: só devolve erro quando a entrada
// é inválida. Sem nenhuma seção ok, responde 502 com o detalhe de cada uma.
func (d Dashboard) Resumo(ctx context.Context, fields url.Values) (domain.Result, error) {
	if missing := MissingFields(fields, d.Required); len(missing) > 0 {
		return domain.Result{}, &domain.ValidationError{Missing: missing}
	}

	results := make([]SectionResult, len(d.Sections))

	var g errgroup.Group
	for i, sec := range d.Sections {
		g.Go(func() error {
			results[i] = d.section(ctx, sec, fields)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]SectionResult, len(d.Sections))
	anyOk := false
	for i, sec := range d.Sections {
		out[sec.Name] = results[i]
		anyOk = anyOk || results[i].Ok
	}

	if !anyOk && len(d.Sections) > 0 {
		env := domain.Fail("Não foi possível carregar o resumo.")
		env.Data = out
		return domain.Result{Code: http.StatusBadGateway, Envelope: env}, nil
	}
	return domain.Result{Code: http.StatusOK, Envelope: domain.Ok(out, "")}, nil
}

func (d Dashboard) section(ctx context.Context, sec DashboardSection, fields url.Values) SectionResult {
	res, err := d.Forwarder.Forward(ctx, sec.Route, Input{Fields: fields})
	if err != nil {
		return SectionResult{Erro: domain.PublicMessage(err)}
	}
	if !res.Envelope.Success {
		return SectionResult{Erro: res.Envelope.Message}
	}
	return SectionResult{Ok: true, Data: res.Envelope.Data}
}
