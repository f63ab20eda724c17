package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"sasapp-gateway/sasapp/application"
	"sasapp-gateway/sasapp/domain"

	"github.com/gin-gonic/gin"
)

// readInput normaliza query, JSON, form e multipart em url.Values.
// O cleanup fecha os arquivos abertos do multipart e deve sempre ser chamado.
func readInput(c *gin.Context, maxMemory int64) (application.Input, func(), error) {
	noop := func() {}
	in := application.Input{Fields: url.Values{}}

	for k, vs := range c.Request.URL.Query() {
		in.Fields[k] = append([]string(nil), vs...)
	}
	if c.Request.Method == http.MethodGet || c.Request.Body == nil || c.Request.ContentLength == 0 {
		return in, noop, nil
	}

	ct, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch ct {
	// fetch com JSON.stringify e sem Content-Type manda text/plain
	case "application/json", "text/plain", "":
		if err := readJSON(c.Request.Body, in.Fields); err != nil {
			return in, noop, err
		}
		return in, noop, nil

	case "application/x-www-form-urlencoded":
		if err := c.Request.ParseForm(); err != nil {
			return in, noop, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
		for k, vs := range c.Request.PostForm {
			in.Fields[k] = vs
		}
		return in, noop, nil

	case "multipart/form-data":
		if err := c.Request.ParseMultipartForm(maxMemory); err != nil {
			return in, noop, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
		form := c.Request.MultipartForm
		for k, vs := range form.Value {
			in.Fields[k] = vs
		}
		files, cleanup, err := openFiles(form)
		if err != nil {
			return in, noop, err
		}
		in.Files = files
		return in, cleanup, nil

	default:
		return in, noop, fmt.Errorf("%w: content-type %q", domain.ErrBadPayload, ct)
	}
}

func openFiles(form *multipart.Form) ([]domain.File, func(), error) {
	var (
		files  []domain.File
		closer []io.Closer
	)
	cleanup := func() {
		for _, c := range closer {
			_ = c.Close()
		}
		_ = form.RemoveAll()
	}
	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				cleanup()
				return nil, func() {}, fmt.Errorf("%w: arquivo %s: %v", domain.ErrBadPayload, fh.Filename, err)
			}
			closer = append(closer, f)
			files = append(files, domain.File{
				Field:    field,
				Name:     fh.Filename,
				Content:  f,
				MimeType: fh.Header.Get("Content-Type"),
			})
		}
	}
	return files, cleanup, nil
}

// readJSON aceita só objeto no topo. Números ficam no texto original,
// booleanos viram "1"/"0" e objetos aninhados seguem como JSON.
func readJSON(r io.Reader, into url.Values) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	for k, v := range obj {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if s, ok := scalar(item); ok {
					into.Add(k, s)
				}
			}
			continue
		}
		if s, ok := scalar(v); ok {
			into.Set(k, s)
		}
	}
	return nil
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "1", true
		}
		return "0", true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// bindJSON decodifica o corpo num struct, traduzindo falha para ErrBadPayload.
func bindJSON(c *gin.Context, dst any) error {
	if err := json.NewDecoder(c.Request.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: corpo vazio", domain.ErrBadPayload)
		}
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	return nil
}
