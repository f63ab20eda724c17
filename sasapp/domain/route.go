package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Fallback string

const (
	// FallbackNone devolve o erro ao browser.
	FallbackNone Fallback = ""
	// FallbackAssumeSuccess responde sucesso quando o legado não dá resposta utilizável.
	FallbackAssumeSuccess Fallback = "assume-success"
	// FallbackEmptyList responde uma lista vazia (telas de listagem).
	FallbackEmptyList Fallback = "empty-list"
)

// DedupeRule liga a supressão de duplicidade numa rota.
type DedupeRule struct {
	Fields []string      `yaml:"fields"`
	Window time.Duration `yaml:"window"`
}

// Route é a descrição declarativa de um endpoint /api/* que repassa ao legado.
type Route struct {
	Name     string            `yaml:"name"`
	Method   string            `yaml:"method"`
	Path     string            `yaml:"path"`
	Script   string            `yaml:"script"`
	Encoding Encoding          `yaml:"encoding"`
	Required []string          `yaml:"required"`
	Rename   map[string]string `yaml:"rename"`
	Static   map[string]string `yaml:"static"`
	Dedupe   *DedupeRule       `yaml:"dedupe"`
	Fallback Fallback          `yaml:"fallback"`
	// ListKey embrulha respostas em array como {ListKey: [...]}.
	ListKey string `yaml:"list_key"`
	// Message é usada quando o legado não manda mensagem em respostas de sucesso.
	Message string `yaml:"message"`
	// Session exige cookie de convênio e injeta cod_convenio.
	Session bool `yaml:"session"`
}

// UpstreamMethod é o método usado contra o legado.
//
// O browser sempre fala POST/GET com o gateway; o legado recebe GET só em query.
func (r Route) UpstreamMethod() string {
	if r.Encoding == EncodingQuery {
		return "GET"
	}
	return "POST"
}

func (r Route) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("name é obrigatório"))
	}
	if !strings.HasPrefix(r.Path, "/api/") {
		errs = append(errs, fmt.Errorf("path %q deve começar com /api/", r.Path))
	}
	if strings.TrimSpace(r.Script) == "" {
		errs = append(errs, errors.New("script é obrigatório"))
	}
	switch strings.ToUpper(r.Method) {
	case "GET", "POST":
	default:
		errs = append(errs, fmt.Errorf("method %q não suportado", r.Method))
	}
	switch r.Encoding {
	case "", EncodingForm, EncodingMultipart, EncodingQuery, EncodingJSON:
	default:
		errs = append(errs, fmt.Errorf("encoding %q não suportado", r.Encoding))
	}
	switch r.Fallback {
	case FallbackNone, FallbackAssumeSuccess, FallbackEmptyList:
	default:
		errs = append(errs, fmt.Errorf("fallback %q não suportado", r.Fallback))
	}
	if r.Dedupe != nil && len(r.Dedupe.Fields) == 0 {
		errs = append(errs, errors.New("dedupe.fields não pode ser vazio"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("rota %q: %w", r.Name, errors.Join(errs...))
}
