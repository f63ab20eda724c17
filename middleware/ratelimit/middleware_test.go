package ratelimit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sasapp-gateway/middleware/ratelimit/domain"
	"sasapp-gateway/middleware/ratelimit/infra"
)

type recordingStats struct {
	events []domain.StatsEvent
}

func (s *recordingStats) Record(_ context.Context, ev domain.StatsEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func jsonReject(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "status": "erro", "message": "devagar"})
}

func TestMiddleware_DefaultRejectIsPlainText(t *testing.T) {
	store := infra.NewStore(0.02, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store})(next)

	var w *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w = httptest.NewRecorder()
		h.ServeHTTP(w, r)
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("expected text/plain, got %q", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After on default reject")
	}
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewStore(0.02, 1)
	stats := &recordingStats{}

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Store:               store,
		Stats:               stats,
		RetryAfter:          time.Second,
		AddRateLimitHeaders: true,
		Reject:              jsonReject,
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodPost, "http://example/api/associado/saldo", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	for _, hdr := range []string{"X-RateLimit-Key", "X-RateLimit-RPS", "X-RateLimit-Burst"} {
		if w1.Header().Get(hdr) == "" {
			t.Fatalf("expected %s header to be set", hdr)
		}
	}

	// 2) segunda bloqueia (burst=1 e rps bem baixo)
	r2 := httptest.NewRequest(http.MethodPost, "http://example/api/associado/saldo", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}

	var env struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &env); err != nil {
		t.Fatalf("expected JSON envelope, got %q: %v", w2.Body.String(), err)
	}
	if env.Success || env.Status != "erro" || env.Message == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	if len(stats.events) != 2 || !stats.events[0].Allowed || stats.events[1].Allowed {
		t.Fatalf("unexpected stats events: %+v", stats.events)
	}
	if stats.events[1].Kind != domain.KindIP || stats.events[1].Path != "/api/associado/saldo" {
		t.Fatalf("unexpected event: %+v", stats.events[1])
	}
	if stats.events[0].Wait != 0 || stats.events[1].Wait < time.Second {
		t.Fatalf("expected wait only on the denied event: %+v", stats.events)
	}
}

func TestMiddleware_HeadersShowTierOfIdentity(t *testing.T) {
	store := infra.NewStore(1, 2, infra.WithKindTier(domain.KindHeader, domain.Tier{RPS: 30, Burst: 60}))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{
		Store:               store,
		Keys:                KeyOptions{Header: "X-Api-Key"},
		AddRateLimitHeaders: true,
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Api-Key", "parceiro")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get("X-RateLimit-RPS"); got != "30" {
		t.Fatalf("expected header tier rps 30, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Burst"); got != "60" {
		t.Fatalf("expected header tier burst 60, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:555"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get("X-RateLimit-Burst"); got != "2" {
		t.Fatalf("expected default burst 2 for ip, got %q", got)
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store: store,
		Keys:  KeyOptions{Header: "X-Api-Key"},
	})(next)

	// chaves diferentes => cada uma com seu limiter
	for _, k := range []string{"k1", "k2"} {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.Header.Set("X-Api-Key", k)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for key %s, got %d", k, w.Code)
		}
	}
}

func TestMiddleware_RetryAfterComesFromBucket(t *testing.T) {
	// 0.5 rps: o próximo token sai em 2s, acima do piso de 1s
	store := infra.NewStore(0.5, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store, RetryAfter: time.Second})(next)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if i == 0 {
			continue
		}
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", w.Code)
		}
		if got := strings.TrimSpace(w.Header().Get("Retry-After")); got != "2" {
			t.Fatalf("expected Retry-After=2, got %q", got)
		}
	}
}

func TestMiddleware_SkipDoesNotConsumeTokens(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{
		Store: store,
		Skip:  func(r *http.Request) bool { return !strings.HasPrefix(r.URL.Path, "/api/") },
	})(next)

	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/healthz", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected skipped path to pass, got %d", w.Code)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("expected no limiter created for skipped path")
	}
}

func TestFormatSeconds_RoundsUp(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "1",
		300 * time.Millisecond:  "1",
		time.Second:             "1",
		2500 * time.Millisecond: "3",
	}
	for in, want := range cases {
		if got := formatSeconds(in); got != want {
			t.Fatalf("formatSeconds(%s) = %q, want %q", in, got, want)
		}
	}
}
