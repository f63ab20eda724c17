package application

import (
	"testing"
	"time"

	"sasapp-gateway/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	allow bool
	wait  time.Duration
}

func (f fakeLimiter) AllowAt(time.Time) (bool, time.Duration) { return f.allow, f.wait }

type fakeStore struct {
	lim domain.Limiter
}

func (s fakeStore) Get(domain.Identity) domain.Limiter { return s.lim }

var client = domain.Identity{Key: "k", Kind: domain.KindIP}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	dec := Service{}.Decide(client)
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_AllowsWhenLimiterAllows(t *testing.T) {
	svc := Service{Store: fakeStore{lim: fakeLimiter{allow: true}}, MinRetryAfter: 5 * time.Second}
	if dec := svc.Decide(client); !dec.Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestService_Decide_BlocksWithDefaultFloor(t *testing.T) {
	svc := Service{Store: fakeStore{lim: fakeLimiter{allow: false}}}
	dec := svc.Decide(client)
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != time.Second {
		t.Fatalf("expected RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_UsesLimiterWaitAboveFloor(t *testing.T) {
	svc := Service{Store: fakeStore{lim: fakeLimiter{allow: false, wait: 7 * time.Second}}, MinRetryAfter: 2 * time.Second}
	if dec := svc.Decide(client); dec.RetryAfter != 7*time.Second {
		t.Fatalf("expected RetryAfter=7s, got %s", dec.RetryAfter)
	}

	svc.Store = fakeStore{lim: fakeLimiter{allow: false, wait: 100 * time.Millisecond}}
	if dec := svc.Decide(client); dec.RetryAfter != 2*time.Second {
		t.Fatalf("expected floor 2s, got %s", dec.RetryAfter)
	}
}
