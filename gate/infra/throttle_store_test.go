package infra

import (
	"testing"
	"time"

	"reading-gate/gate/domain"
)

func newTestThrottle(rates map[domain.Endpoint]domain.Rate) (*ThrottleStore, *fakeClock) {
	c := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewThrottleStore(rates, WithThrottleClock(c.Now), WithIdleTTL(time.Minute), WithThrottleSweepEvery(0)), c
}

func take(t *testing.T, s *ThrottleStore, c *fakeClock, ep domain.Endpoint, client string) (bool, time.Duration) {
	t.Helper()
	b, ok := s.Bucket(domain.ThrottleKey{Endpoint: ep, Client: client})
	if !ok {
		t.Fatalf("expected bucket for %s", ep)
	}
	return b.Take(c.Now())
}

func TestThrottleStore_EndpointsHaveSeparateBudgets(t *testing.T) {
	s, c := newTestThrottle(map[domain.Endpoint]domain.Rate{
		domain.EndpointConfig: {PerSecond: 1, Burst: 2},
		domain.EndpointSubmit: {PerSecond: 0.1, Burst: 1},
	})

	// mesmo NAT esgota as leituras de config...
	for i := 0; i < 2; i++ {
		if ok, _ := take(t, s, c, domain.EndpointConfig, "203.0.113.7"); !ok {
			t.Fatalf("expected config read %d allowed", i)
		}
	}
	if ok, _ := take(t, s, c, domain.EndpointConfig, "203.0.113.7"); ok {
		t.Fatalf("expected third config read throttled")
	}

	// ...e a submissão continua com a ficha dela
	if ok, _ := take(t, s, c, domain.EndpointSubmit, "203.0.113.7"); !ok {
		t.Fatalf("expected submit unaffected by config reads")
	}
}

func TestThrottleStore_WaitReflectsEndpointRate(t *testing.T) {
	s, c := newTestThrottle(map[domain.Endpoint]domain.Rate{
		domain.EndpointSubmit: {PerSecond: 0.25, Burst: 1},
	})

	if ok, _ := take(t, s, c, domain.EndpointSubmit, "a"); !ok {
		t.Fatalf("expected first submit allowed")
	}
	ok, wait := take(t, s, c, domain.EndpointSubmit, "a")
	if ok {
		t.Fatalf("expected second submit throttled")
	}
	if wait != 4*time.Second {
		t.Fatalf("expected wait of 4s at 0.25 rps, got %s", wait)
	}

	// recusa não consome ficha: depois da espera passa de novo
	c.Advance(4 * time.Second)
	if ok, _ := take(t, s, c, domain.EndpointSubmit, "a"); !ok {
		t.Fatalf("expected submit allowed after waiting")
	}
}

func TestThrottleStore_UnconfiguredEndpointIsUnlimited(t *testing.T) {
	s, _ := newTestThrottle(map[domain.Endpoint]domain.Rate{
		domain.EndpointSubmit: {PerSecond: 1, Burst: 1},
		domain.EndpointToken:  {PerSecond: 0, Burst: 5},
	})
	if _, ok := s.Bucket(domain.ThrottleKey{Endpoint: domain.EndpointConfig, Client: "a"}); ok {
		t.Fatalf("expected no bucket for config")
	}
	if _, ok := s.Bucket(domain.ThrottleKey{Endpoint: domain.EndpointToken, Client: "a"}); ok {
		t.Fatalf("expected zero rate to disable token throttle")
	}
	if s.Len() != 0 {
		t.Fatalf("expected no buckets allocated, got %d", s.Len())
	}
}

func TestThrottleStore_CleanupDropsIdleBuckets(t *testing.T) {
	s, c := newTestThrottle(map[domain.Endpoint]domain.Rate{
		domain.EndpointSubmit: {PerSecond: 0.01, Burst: 1},
	})

	_, _ = take(t, s, c, domain.EndpointSubmit, "a")
	c.Advance(30 * time.Second)
	_, _ = take(t, s, c, domain.EndpointSubmit, "b")
	c.Advance(45 * time.Second)

	s.Cleanup()
	if s.Len() != 1 {
		t.Fatalf("expected only the recent bucket kept, got %d", s.Len())
	}
	// bucket recriado para "a" começa cheio
	if ok, _ := take(t, s, c, domain.EndpointSubmit, "a"); !ok {
		t.Fatalf("expected fresh bucket after cleanup")
	}
}
