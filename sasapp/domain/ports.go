package domain

import (
	"context"
	"io"
	"net/url"
	"time"
)

type Encoding string

const (
	EncodingForm      Encoding = "form"
	EncodingMultipart Encoding = "multipart"
	EncodingQuery     Encoding = "query"
	EncodingJSON      Encoding = "json"
)

// File é um anexo repassado em chamadas multipart.
type File struct {
	Field    string
	Name     string
	Content  io.Reader
	MimeType string
}

// Call descreve uma chamada a um script PHP do legado.
type Call struct {
	Method   string
	Script   string
	Encoding Encoding
	Fields   url.Values
	Files    []File
}

type Reply struct {
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// Upstream é o backend legado (sas.makecard.com.br).
//
// Quando o legado responde com status >= 400, Do devolve o Reply preenchido
// junto com um *UpstreamError de KindStatus.
type Upstream interface {
	Do(ctx context.Context, call Call) (Reply, error)
}

// SlotPool limita quantas chamadas ao legado ficam em voo ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// DuplicateGuard suprime submissões repetidas dentro de uma janela.
//
// Reserve devolve false quando já existe reserva válida para a chave.
type DuplicateGuard interface {
	Reserve(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// SignatureStore guarda o último status conhecido de cada documento.
type SignatureStore interface {
	Get(ctx context.Context, docToken string) (SignatureStatus, bool, error)
	Put(ctx context.Context, st SignatureStatus) error
}

const (
	OutcomeOk           = "ok"
	OutcomeErro         = "erro"
	OutcomeTimeout      = "timeout"
	OutcomeIndisponivel = "indisponivel"
	OutcomeOcupado      = "ocupado"
)

// CallEvent registra o desfecho de uma chamada ao legado.
//
// Cuidado com cardinalidade: Script vem do catálogo de rotas, nunca do usuário.
type CallEvent struct {
	Script     string
	Method     string
	Outcome    string
	StatusCode int
	Elapsed    time.Duration
	At         time.Time
}

// CallStats persiste estatísticas de chamadas. Sempre best-effort.
type CallStats interface {
	Record(ctx context.Context, ev CallEvent) error
}
