package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do pipeline (aceite ou rejeição).
//
// Cause é a causa interna (ex: "honeypot"); nunca é exposta ao cliente.
// Cuidado com cardinalidade: não coloque email/IP aqui.
type StatsEvent struct {
	Allowed   bool
	Duplicate bool
	Cause     Cause

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas de decisão.
//
// O pipeline trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
