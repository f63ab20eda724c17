package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"sasapp-gateway/sasapp/domain"
)

// fakeUpstream responde por script. Respostas ausentes viram KindUnavailable.
type fakeUpstream struct {
	mu      sync.Mutex
	replies map[string]fakeReply
	calls   []domain.Call
}

type fakeReply struct {
	reply domain.Reply
	err   error
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{replies: make(map[string]fakeReply)}
}

func (f *fakeUpstream) on(script string, status int, body string) *fakeUpstream {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if status >= 400 {
		err = &domain.UpstreamError{Kind: domain.KindStatus, Script: script, StatusCode: status}
	}
	f.replies[script] = fakeReply{reply: domain.Reply{StatusCode: status, Body: []byte(body)}, err: err}
	return f
}

func (f *fakeUpstream) fail(script string, kind domain.UpstreamKind) *fakeUpstream {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[script] = fakeReply{err: &domain.UpstreamError{Kind: kind, Script: script, Err: errors.New("fake")}}
	return f
}

func (f *fakeUpstream) Do(_ context.Context, call domain.Call) (domain.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	r, ok := f.replies[call.Script]
	if !ok {
		return domain.Reply{}, &domain.UpstreamError{Kind: domain.KindUnavailable, Script: call.Script}
	}
	return r.reply, r.err
}

func (f *fakeUpstream) callCount(script string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Script == script {
			n++
		}
	}
	return n
}

func (f *fakeUpstream) lastCall() domain.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeGuard é um guard em memória sem expiração.
type fakeGuard struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
	err      error
}

func newFakeGuard() *fakeGuard { return &fakeGuard{keys: make(map[string]bool)} }

func (g *fakeGuard) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	g.released = append(g.released, key)
	return nil
}

type fakeSignatureStore struct {
	mu    sync.Mutex
	items map[string]domain.SignatureStatus
}

func newFakeSignatureStore() *fakeSignatureStore {
	return &fakeSignatureStore{items: make(map[string]domain.SignatureStatus)}
}

func (s *fakeSignatureStore) Get(_ context.Context, tok string) (domain.SignatureStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.items[tok]
	return st, ok, nil
}

func (s *fakeSignatureStore) Put(_ context.Context, st domain.SignatureStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[st.DocToken] = st
	return nil
}
