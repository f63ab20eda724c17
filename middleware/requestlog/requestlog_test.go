package requestlog

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sasapp-gateway/internal/logging"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LogsAndPropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := Middleware(Options{Log: zerolog.New(&buf)})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
		zerolog.Ctx(r.Context()).Info().Msg("dentro")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "chá")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/associado/saldo", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"request_id":"req-1"`)

	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
	assert.Equal(t, "warn", ev["level"])
	assert.Equal(t, float64(http.StatusTeapot), ev["status"])
	assert.Equal(t, "/api/associado/saldo", ev["path"])
	assert.Equal(t, float64(len("chá")), ev["bytes"])
}

func TestMiddleware_GeneratesIDWhenMissingOrInvalid(t *testing.T) {
	h := Middleware(Options{Log: zerolog.Nop()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, incoming := range []string{"", "tem espaço", strings.Repeat("x", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if incoming != "" {
			req.Header.Set(HeaderRequestID, incoming)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Len(t, rec.Header().Get(HeaderRequestID), 36, "entrada %q", incoming)
	}
}

func TestMiddleware_SkipSuppressesAccessLog(t *testing.T) {
	var buf bytes.Buffer
	h := Middleware(Options{
		Log:  zerolog.New(&buf),
		Skip: func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestMiddleware_ServerErrorLogsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	h := Middleware(Options{Log: zerolog.New(&buf)})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, buf.String(), `"level":"error"`)
}
