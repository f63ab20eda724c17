package domain

import (
	"strings"
	"time"
)

type SignatureState string

const (
	SignaturePending SignatureState = "pendente"
	SignatureSigned  SignatureState = "assinado"
	SignatureRefused SignatureState = "recusado"
)

// SignatureStatus é o estado da assinatura digital de um documento SasCred.
type SignatureStatus struct {
	DocToken  string         `json:"doc_token"`
	Status    SignatureState `json:"status"`
	Signer    string         `json:"signer,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s SignatureStatus) IsFinal() bool {
	return s.Status == SignatureSigned || s.Status == SignatureRefused
}

// ParseSignatureState normaliza os nomes de evento/status que chegam do
// webhook ou do script de consulta do legado.
func ParseSignatureState(v string) SignatureState {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "doc_signed", "signed", "assinado", "assinada", "finalizado":
		return SignatureSigned
	case "doc_refused", "refused", "recusado", "recusada", "rejeitado":
		return SignatureRefused
	default:
		return SignaturePending
	}
}
