package domain

import (
	"context"
	"errors"
)

// ErrOverloaded indica que nenhuma vaga de submissão abriu dentro do prazo.
var ErrOverloaded = errors.New("submission slots exhausted")

// SlotPool limita quantas submissões são processadas ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. A função de
// release devolvida deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
