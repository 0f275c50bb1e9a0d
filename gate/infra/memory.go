package infra

import (
	"context"
	"sync"
	"time"

	"reading-gate/gate/domain"
)

// MemoryStore implementa TokenStore, CounterStore e MarkStore em memória.
//
// Expiração é preguiçosa (checada na leitura) e um janitor opcional remove
// entradas vencidas. Adequado para uma única instância; com várias réplicas use RedisStore.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]*memEntry
	now          func() time.Time
	cleanupEvery time.Duration
}

type memEntry struct {
	value     string
	count     int64
	expiresAt time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock troca o relógio (testes de expiração).
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithSweepEvery(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]*memEntry),
		now:          time.Now,
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func tokenKey(visitorID string) string { return "token:" + visitorID }

func (s *MemoryStore) Put(_ context.Context, visitorID, secret string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tokenKey(visitorID)] = &memEntry{value: secret, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, visitorID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.liveLocked(tokenKey(visitorID))
	if !ok {
		return "", false, nil
	}
	return ent.value, true, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.liveLocked(key)
	if !ok {
		ent = &memEntry{}
		s.entries[key] = ent
	}
	ent.count++
	ent.expiresAt = s.now().Add(ttl)
	return ent.count, nil
}

func (s *MemoryStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.liveLocked(key)
	if !ok {
		return 0, nil
	}
	return ent.count, nil
}

func (s *MemoryStore) Mark(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memEntry{value: "1", expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveLocked(key); ok {
		return false, nil
	}
	s.entries[key] = &memEntry{value: "pending", expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liveLocked(key)
	return ok, nil
}

// liveLocked devolve a entrada se ainda não expirou; vencida é tratada como ausente.
func (s *MemoryStore) liveLocked(key string) (*memEntry, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(ent.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return ent, true
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !now.Before(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que remove entradas vencidas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	startSweeper(ctx, s.cleanupEvery, s.Cleanup)
}

// DoneContext é o mínimo necessário para aceitar context.Context sem acoplar o janitor.
type DoneContext interface {
	Done() <-chan struct{}
}

func startSweeper(ctx DoneContext, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}

var (
	_ domain.TokenStore   = (*MemoryStore)(nil)
	_ domain.CounterStore = (*MemoryStore)(nil)
	_ domain.MarkStore    = (*MemoryStore)(nil)
)
