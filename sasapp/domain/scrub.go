package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
)

// ErrNotJSON indica que nem a resposta limpa contém JSON utilizável.
var ErrNotJSON = errors.New("resposta do legado não é JSON")

var (
	utf8BOM = []byte("\xef\xbb\xbf")

	// Avisos do PHP com html_errors=On:
	//   <br />\n<b>Warning</b>:  Undefined index: x in /var/www/a.php on line <b>12</b><br />
	phpHTMLDiagnostic = regexp.MustCompile(`(?is)(<br\s*/?>\s*)?<b>\s*(?:warning|notice|deprecated|fatal error|catchable fatal error|parse error|strict standards)\s*</b>\s*:.*?on line\s*<b>\s*\d+\s*</b>(\s*<br\s*/?>)?`)

	// Mesmos avisos com html_errors=Off (texto puro, uma linha).
	phpTextDiagnostic = regexp.MustCompile(`(?im)^[ \t]*(?:PHP[ \t]+)?(?:warning|notice|deprecated|fatal error|parse error|strict standards):.*?on line \d+[ \t]*\r?$`)

	leadingTags = regexp.MustCompile(`^(?:\s*<[^>{}\[\]]*>)+`)
)

// Scrub remove o "lixo" que o PHP do legado costuma emitir antes/depois do JSON:
// BOM, avisos de Warning/Notice/Deprecated e tags HTML soltas no início.
func Scrub(body []byte) []byte {
	out := bytes.TrimPrefix(body, utf8BOM)
	out = phpHTMLDiagnostic.ReplaceAll(out, nil)
	out = phpTextDiagnostic.ReplaceAll(out, nil)
	out = bytes.TrimSpace(out)
	if len(out) > 0 && out[0] == '<' && bytes.ContainsAny(out, "{[") {
		out = leadingTags.ReplaceAll(out, nil)
	}
	return bytes.TrimSpace(out)
}

// DecodeLenient tenta, em ordem: JSON estrito, JSON após Scrub e o primeiro
// trecho {…}/[…] balanceado do texto limpo.
func DecodeLenient(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err == nil {
		return nil
	}

	clean := Scrub(body)
	if err := json.Unmarshal(clean, v); err == nil {
		return nil
	}

	if seg, ok := firstJSONSegment(clean); ok {
		if err := json.Unmarshal(seg, v); err == nil {
			return nil
		}
	}
	return ErrNotJSON
}

// firstJSONSegment procura o primeiro objeto/array balanceado e válido.
// O casamento respeita strings e escapes.
func firstJSONSegment(s []byte) ([]byte, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' && s[start] != '[' {
			continue
		}
		if end, ok := matchBrackets(s, start); ok && json.Valid(s[start:end]) {
			return s[start:end], true
		}
	}
	return nil, false
}

func matchBrackets(s []byte, start int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}
