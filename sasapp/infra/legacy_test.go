package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sasapp-gateway/internal/logging"
	"sasapp-gateway/sasapp/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...LegacyOption) (*LegacyClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewLegacyClient(srv.URL, 2*time.Second, opts...)
	require.NoError(t, err)
	return c, srv
}

func TestLegacyClient_FormPost(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/app/saldo.php", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "123", r.PostForm.Get("matricula"))
		_, _ = io.WriteString(w, `{"saldo":"10,00"}`)
	})

	reply, err := c.Do(context.Background(), domain.Call{
		Script:   "app/saldo.php",
		Encoding: domain.EncodingForm,
		Fields:   url.Values{"matricula": {"123"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, reply.StatusCode)
	assert.JSONEq(t, `{"saldo":"10,00"}`, string(reply.Body))
}

func TestLegacyClient_QueryUsesGET(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "abc", r.URL.Query().Get("token"))
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.Do(context.Background(), domain.Call{
		Script:   "/app/status.php",
		Encoding: domain.EncodingQuery,
		Fields:   url.Values{"token": {"abc"}},
	})
	require.NoError(t, err)
}

func TestLegacyClient_PropagatesRequestID(t *testing.T) {
	var gotID, gotUA string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-Id")
		gotUA = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `{}`)
	}, WithUserAgent("teste/1"))

	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	_, err := c.Do(ctx, domain.Call{Script: "app/saldo.php"})
	require.NoError(t, err)
	assert.Equal(t, "req-42", gotID)
	assert.Equal(t, "teste/1", gotUA)
}

func TestLegacyClient_MultipartWithFile(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "999", r.FormValue("matricula"))
		f, hdr, err := r.FormFile("documento")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		raw, _ := io.ReadAll(f)
		assert.Equal(t, "rg.pdf", hdr.Filename)
		assert.Equal(t, "conteudo", string(raw))
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	_, err := c.Do(context.Background(), domain.Call{
		Script:   "app/sascred_adesao.php",
		Encoding: domain.EncodingMultipart,
		Fields:   url.Values{"matricula": {"999"}},
		Files:    []domain.File{{Field: "documento", Name: "rg.pdf", Content: strings.NewReader("conteudo"), MimeType: "application/pdf"}},
	})
	require.NoError(t, err)
}

func TestLegacyClient_JSONBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, map[string]any{"a": "1", "b": []any{"x", "y"}}, got)
		_, _ = io.WriteString(w, `{}`)
	})

	_, err := c.Do(context.Background(), domain.Call{
		Script:   "app/x.php",
		Encoding: domain.EncodingJSON,
		Fields:   url.Values{"a": {"1"}, "b": {"x", "y"}},
	})
	require.NoError(t, err)
}

func TestLegacyClient_StatusErrorKeepsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"erro":"falhou"}`)
	})

	reply, err := c.Do(context.Background(), domain.Call{Script: "app/x.php"})
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.KindStatus, ue.Kind)
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
	assert.Equal(t, `{"erro":"falhou"}`, string(reply.Body))
}

func TestLegacyClient_TimeoutIsClassified(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewLegacyClient(srv.URL, 50*time.Millisecond)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), domain.Call{Script: "app/lento.php"})
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.KindTimeout, ue.Kind)
}

func TestLegacyClient_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := NewLegacyClient(addr, time.Second)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), domain.Call{Script: "app/x.php"})
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.KindUnavailable, ue.Kind)
}

func TestLegacyClient_RetriesGETOn5xx(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[1]`)
	}, WithGetAttempts(3, time.Millisecond))

	reply, err := c.Do(context.Background(), domain.Call{Script: "app/lista.php", Encoding: domain.EncodingQuery})
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(reply.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestLegacyClient_NeverRetriesPOST(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithGetAttempts(5, time.Millisecond))

	_, err := c.Do(context.Background(), domain.Call{Script: "app/antecipacao.php", Encoding: domain.EncodingForm})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLegacyClient_DoesNotRetry4xx(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "nao achei")
	}, WithGetAttempts(3, time.Millisecond))

	reply, err := c.Do(context.Background(), domain.Call{Script: "app/x.php", Encoding: domain.EncodingQuery})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "nao achei", string(reply.Body))
}

func TestLegacyClient_BusyWhenNoSlot(t *testing.T) {
	pool := NewSlotPool(1)
	release, ok := pool.Acquire(context.Background())
	require.True(t, ok)
	defer release()

	stats := NewMemoryCallStats()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("legado não deveria ser chamado")
	}, WithSlotPool(pool, 10*time.Millisecond), WithCallStats(stats))

	_, err := c.Do(context.Background(), domain.Call{Script: "app/x.php"})
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.KindBusy, ue.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, domain.HTTPStatus(err))
	assert.Equal(t, int64(1), stats.Snapshot().Total.ByOutcome[domain.OutcomeOcupado])
}

func TestLegacyClient_RecordsStats(t *testing.T) {
	stats := NewMemoryCallStats()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}, WithCallStats(stats))

	for i := 0; i < 2; i++ {
		_, err := c.Do(context.Background(), domain.Call{Script: "app/saldo.php"})
		require.NoError(t, err)
	}

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.Total.Calls)
	assert.Equal(t, int64(2), snap.ByScript["app/saldo.php"].ByOutcome[domain.OutcomeOk])
}

func TestNewLegacyClient_RejectsBadURL(t *testing.T) {
	_, err := NewLegacyClient("ftp://sas", time.Second)
	require.Error(t, err)
}

func TestSlotPool_ReleaseIsIdempotent(t *testing.T) {
	p := NewSlotPool(1)
	rel, ok := p.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(1), p.InFlight())
	rel()
	rel()
	assert.Equal(t, int64(0), p.InFlight())

	ctx, cancel := context.WithCancel(context.Background())
	rel2, ok := p.Acquire(ctx)
	require.True(t, ok)
	cancel()
	_, ok = p.Acquire(ctx)
	assert.False(t, ok)
	rel2()
}

func TestClassifyTransport_KeepsUpstreamError(t *testing.T) {
	in := &domain.UpstreamError{Kind: domain.KindStatus}
	assert.Same(t, in, classifyTransport("x", in))
	out := classifyTransport("x", context.DeadlineExceeded)
	var ue *domain.UpstreamError
	require.True(t, errors.As(out, &ue))
	assert.Equal(t, domain.KindTimeout, ue.Kind)
}
