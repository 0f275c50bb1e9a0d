package infra

import (
	"context"
	"sync"

	"reading-gate/gate/domain"
)

type Counters struct {
	Allowed   int64
	Duplicate int64
	Denied    int64
}

// MemoryStatsStore conta decisões do pipeline em memória.
// Útil para testes e desenvolvimento; não faz expiração.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byCause map[domain.Cause]int64
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{byCause: make(map[domain.Cause]int64)}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Allowed {
		s.total.Allowed++
		if ev.Duplicate {
			s.total.Duplicate++
		}
		return nil
	}
	s.total.Denied++
	s.byCause[ev.Cause]++
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByCause() map[domain.Cause]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Cause]int64, len(s.byCause))
	for k, v := range s.byCause {
		out[k] = v
	}
	return out
}

var _ domain.StatsStore = (*MemoryStatsStore)(nil)
