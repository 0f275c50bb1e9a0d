package infra

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"reading-gate/gate/domain"
)

// ThrottleStore guarda um token bucket (x/time/rate) por (endpoint, cliente).
// Só endpoints com Rate configurado são limitados.
type ThrottleStore struct {
	mu      sync.Mutex
	rates   map[domain.Endpoint]domain.Rate
	buckets map[domain.ThrottleKey]*bucket
	now     func() time.Time

	idleTTL    time.Duration
	sweepEvery time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Take reserva uma ficha; sem ficha disponível a reserva é cancelada para não
// empurrar o próximo cliente legítimo mais para frente.
func (b *bucket) Take(now time.Time) (bool, time.Duration) {
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	wait := r.DelayFrom(now)
	if wait == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, wait
}

type ThrottleOption func(*ThrottleStore)

// WithIdleTTL define depois de quanto tempo sem uso um bucket é descartado.
func WithIdleTTL(d time.Duration) ThrottleOption {
	return func(s *ThrottleStore) { s.idleTTL = d }
}

func WithThrottleSweepEvery(d time.Duration) ThrottleOption {
	return func(s *ThrottleStore) { s.sweepEvery = d }
}

func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(s *ThrottleStore) { s.now = now }
}

// NewThrottleStore cria o store com um Rate por endpoint. Rates com
// PerSecond <= 0 ou Burst <= 0 deixam o endpoint sem limite.
func NewThrottleStore(rates map[domain.Endpoint]domain.Rate, opts ...ThrottleOption) *ThrottleStore {
	s := &ThrottleStore{
		rates:      make(map[domain.Endpoint]domain.Rate, len(rates)),
		buckets:    make(map[domain.ThrottleKey]*bucket),
		now:        time.Now,
		idleTTL:    15 * time.Minute,
		sweepEvery: 2 * time.Minute,
	}
	for ep, r := range rates {
		if r.PerSecond > 0 && r.Burst > 0 {
			s.rates[ep] = r
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rate devolve o orçamento configurado do endpoint.
func (s *ThrottleStore) Rate(ep domain.Endpoint) (domain.Rate, bool) {
	r, ok := s.rates[ep]
	return r, ok
}

func (s *ThrottleStore) Bucket(key domain.ThrottleKey) (domain.Bucket, bool) {
	r, ok := s.rates[key.Endpoint]
	if !ok {
		return nil, false
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, found := s.buckets[key]
	if !found {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(r.PerSecond), r.Burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	return b, true
}

// Len devolve quantos buckets estão vivos.
func (s *ThrottleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *ThrottleStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
		}
	}
}

func (s *ThrottleStore) StartJanitor(ctx DoneContext) {
	startSweeper(ctx, s.sweepEvery, s.Cleanup)
}

var _ domain.BucketStore = (*ThrottleStore)(nil)
