package infra

import (
	"context"
	"sync"
	"sync/atomic"
)

// SubmitPool é o semáforo de submissões: um channel com capacidade fixa e um
// contador de vagas ocupadas para o log de startup e os testes.
type SubmitPool struct {
	sem      chan struct{}
	inFlight atomic.Int64
}

// NewSubmitPool cria um pool com capacidade size (mínimo 1).
func NewSubmitPool(size int) *SubmitPool {
	if size < 1 {
		size = 1
	}
	return &SubmitPool{sem: make(chan struct{}, size)}
}

func (p *SubmitPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, false
	}
	p.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.inFlight.Add(-1)
			<-p.sem
		})
	}, true
}

// InFlight devolve quantas vagas estão ocupadas agora.
func (p *SubmitPool) InFlight() int { return int(p.inFlight.Load()) }

// Cap devolve a capacidade do pool.
func (p *SubmitPool) Cap() int { return cap(p.sem) }
