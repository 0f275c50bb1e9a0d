package application

import (
	"context"
	"time"

	"reading-gate/gate/domain"
)

// SubmitSlots limita quantas submissões passam pelo pipeline ao mesmo tempo.
type SubmitSlots struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire espera por uma vaga. Separa os dois motivos de não conseguir:
// o cliente desistiu (devolve ctx.Err()) ou o prazo de espera acabou com
// o pool cheio (devolve domain.ErrOverloaded). Só o segundo é sobrecarga.
func (s SubmitSlots) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, domain.ErrOverloaded
}
