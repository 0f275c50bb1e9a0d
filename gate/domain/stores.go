package domain

import (
	"context"
	"time"
)

// TokenStore guarda um segredo por visitante com TTL.
//
// Put sobrescreve qualquer valor anterior da mesma chave (last-write-wins).
// Get retorna ok=false quando não existe ou já expirou.
type TokenStore interface {
	Put(ctx context.Context, visitorID, secret string, ttl time.Duration) error
	Get(ctx context.Context, visitorID string) (secret string, ok bool, err error)
}

// CounterStore mantém contadores por chave.
//
// Incr incrementa e lê em uma única operação atômica por chave e renova o TTL.
// Count retorna 0 para chaves ausentes ou expiradas. Contadores nunca decrementam.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
}

// MarkStore guarda marcas de presença com TTL (dedup).
//
// Reserve cria a marca só se ela não existir, em uma operação atômica por
// chave; ok=false quando já existe marca ou reserva viva. Release apaga a
// marca. Mark grava (ou sobrescreve) a marca com o TTL dado.
type MarkStore interface {
	Mark(ctx context.Context, key string, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Reserve(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)
	Release(ctx context.Context, key string) error
}

// LeadStore persiste leads. É append-only.
type LeadStore interface {
	Insert(ctx context.Context, lead Lead) error
}

// Hasher deriva chaves opacas a partir de valores sensíveis (IP, email, ids).
type Hasher interface {
	Sum(value string) string
}

// CredentialIssuer emite e valida a credencial de desbloqueio.
type CredentialIssuer interface {
	IssueUnlock(visitorID string, ttl time.Duration) (Credential, error)
	VerifyUnlock(value string) bool
}

// NonceIssuer emite e valida nonces anti-forgery por ação.
type NonceIssuer interface {
	IssueNonce(action string) (string, error)
	VerifyNonce(action, nonce string) bool
}

// Eligibility decide se a página/visitante deve receber o gate.
type Eligibility interface {
	Eligible(ctx context.Context, page Page) bool
}
