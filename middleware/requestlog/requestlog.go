// Package requestlog é o access log do gateway: um evento zerolog por
// requisição, com request id propagado no header X-Request-Id.
package requestlog

import (
	"net/http"
	"strings"
	"time"

	"sasapp-gateway/internal/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const HeaderRequestID = "X-Request-Id"

type Options struct {
	Log zerolog.Logger
	// Skip não loga a requisição (o request id continua sendo gerado).
	Skip func(r *http.Request) bool
	Now  func() time.Time
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := opts.Now()

			id := incomingID(r.Header.Get(HeaderRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			reqLog := opts.Log.With().Str("request_id", id).Logger()
			ctx := logging.ContextWithRequestID(r.Context(), id)
			ctx = reqLog.WithContext(ctx)

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r.WithContext(ctx))

			if opts.Skip != nil && opts.Skip(r) {
				return
			}

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			ev := reqLog.Info()
			switch {
			case status >= http.StatusInternalServerError:
				ev = reqLog.Error()
			case status >= http.StatusBadRequest:
				ev = reqLog.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int64("bytes", sw.bytes).
				Dur("elapsed", opts.Now().Sub(start)).
				Str("remote", r.RemoteAddr).
				Msg("http")
		})
	}
}

// incomingID aceita o id do cliente só se for curto e imprimível.
func incomingID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > 64 {
		return ""
	}
	for _, c := range v {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return v
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
