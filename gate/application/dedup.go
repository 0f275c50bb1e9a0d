package application

import (
	"context"
	"strings"
	"time"

	"reading-gate/gate/domain"
)

const (
	DedupWindow = time.Hour
	// ReserveTTL limita quanto uma reserva sobrevive se o processo cair no
	// meio do insert.
	ReserveTTL = time.Minute
)

// Deduplicator desacopla "registrar lead" de "liberar acesso": o mesmo email
// dentro da janela libera o leitor de novo sem gravar um segundo Lead.
type Deduplicator struct {
	Store  domain.MarkStore
	Hasher domain.Hasher
	Window time.Duration
}

func (d Deduplicator) key(email string) string {
	h := d.Hasher
	if h == nil {
		h = plainHasher{}
	}
	return "dup:" + h.Sum(normalizeEmail(email))
}

func (d Deduplicator) IsDuplicate(ctx context.Context, email string) (bool, error) {
	return d.Store.Has(ctx, d.key(email))
}

// Reserve reserva o email antes do insert. ok=false significa que o email já
// foi gravado na janela ou que outra submissão está gravando agora.
func (d Deduplicator) Reserve(ctx context.Context, email string) (bool, error) {
	return d.Store.Reserve(ctx, d.key(email), ReserveTTL)
}

// Release desfaz uma reserva cujo insert falhou.
func (d Deduplicator) Release(ctx context.Context, email string) error {
	return d.Store.Release(ctx, d.key(email))
}

// MarkDuplicate só deve ser chamado depois de um insert bem-sucedido. Confirma
// a reserva com a janela completa.
func (d Deduplicator) MarkDuplicate(ctx context.Context, email string) error {
	w := d.Window
	if w <= 0 {
		w = DedupWindow
	}
	return d.Store.Mark(ctx, d.key(email), w)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
