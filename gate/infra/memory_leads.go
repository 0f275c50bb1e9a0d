package infra

import (
	"context"
	"sync"

	"reading-gate/gate/domain"
)

// MemoryLeadStore guarda leads em memória. Útil para testes e desenvolvimento.
type MemoryLeadStore struct {
	mu    sync.Mutex
	leads []domain.Lead
	// Err, quando definido, é devolvido por Insert (simula falha de storage).
	Err error
}

func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{}
}

func (s *MemoryLeadStore) Insert(_ context.Context, lead domain.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.leads = append(s.leads, lead)
	return nil
}

func (s *MemoryLeadStore) Leads() []domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Lead, len(s.leads))
	copy(out, s.leads)
	return out
}

var _ domain.LeadStore = (*MemoryLeadStore)(nil)
