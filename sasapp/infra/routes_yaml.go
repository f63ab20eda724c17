package infra

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"sasapp-gateway/sasapp/domain"

	"gopkg.in/yaml.v3"
)

type routesFile struct {
	Routes []domain.Route `yaml:"routes"`
}

// LoadRoutes lê rotas extras de um arquivo YAML:
//
//	routes:
//	  - name: convenio_extrato
//	    method: POST
//	    path: /api/convenio/extrato
//	    script: convenio/extrato.php
//	    required: [mes]
//	    session: true
//	    fallback: empty-list
func LoadRoutes(path string) ([]domain.Route, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lendo rotas %s: %w", path, err)
	}
	return ParseRoutes(raw)
}

func ParseRoutes(raw []byte) ([]domain.Route, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var f routesFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("yaml de rotas: %w", err)
	}

	var errs []error
	for i := range f.Routes {
		r := &f.Routes[i]
		r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
		if r.Method == "" {
			r.Method = "POST"
		}
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f.Routes, nil
}

// MergeRoutes aplica extras sobre base; mesmo Name substitui a rota base.
func MergeRoutes(base, extra []domain.Route) []domain.Route {
	out := make([]domain.Route, 0, len(base)+len(extra))
	idx := make(map[string]int, len(base))
	for _, r := range base {
		idx[r.Name] = len(out)
		out = append(out, r)
	}
	for _, r := range extra {
		if i, ok := idx[r.Name]; ok {
			out[i] = r
			continue
		}
		idx[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}
