package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ConvenioSession é o conteúdo do cookie de sessão do convênio.
//
// O token é JSON em base64, sem assinatura nem criptografia: serve só para
// conveniência de sessão, o legado continua sendo a autoridade.
type ConvenioSession struct {
	CodConvenio string    `json:"cod_convenio"`
	Nome        string    `json:"nome,omitempty"`
	CNPJ        string    `json:"cnpj,omitempty"`
	Usuario     string    `json:"usuario,omitempty"`
	EmitidoEm   time.Time `json:"emitido_em"`
}

func EncodeSession(s ConvenioSession) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode sessão: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeSession aceita base64 padrão ou URL-safe, com ou sem padding.
func DecodeSession(token string) (ConvenioSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ConvenioSession{}, ErrSessionMissing
	}

	raw, err := decodeBase64Loose(token)
	if err != nil {
		return ConvenioSession{}, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}

	var s ConvenioSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return ConvenioSession{}, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if strings.TrimSpace(s.CodConvenio) == "" {
		return ConvenioSession{}, fmt.Errorf("%w: cod_convenio vazio", ErrSessionInvalid)
	}
	return s, nil
}

func decodeBase64Loose(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// SameIdentity diz se um registro em cache no browser pertence à mesma sessão.
func SameIdentity(a, b ConvenioSession) bool {
	norm := func(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
	return norm(a.CodConvenio) != "" &&
		norm(a.CodConvenio) == norm(b.CodConvenio) &&
		norm(a.Usuario) == norm(b.Usuario)
}
