package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reading-gate/gate/domain"
)

const (
	IPCeiling      = 20
	VisitorCeiling = 8
	AttemptCeiling = 8
	CounterTTL     = time.Hour
)

// Subject agrupa as três identidades usadas como chave dos contadores.
type Subject struct {
	IP        string
	VisitorID string
	AttemptID string
}

// KeyedCounter é um contador genérico parametrizado por (derivação de chave, teto, TTL).
type KeyedCounter struct {
	Name    string
	Ceiling int64
	TTL     time.Duration
	Key     func(Subject) string
}

// DefaultCounters devolve os três contadores fixos: IP, visitante e tentativa.
func DefaultCounters() []KeyedCounter {
	return []KeyedCounter{
		{Name: "ip", Ceiling: IPCeiling, TTL: CounterTTL, Key: func(s Subject) string { return s.IP }},
		{Name: "vid", Ceiling: VisitorCeiling, TTL: CounterTTL, Key: func(s Subject) string { return s.VisitorID }},
		{Name: "attempt", Ceiling: AttemptCeiling, TTL: CounterTTL, Key: func(s Subject) string { return s.AttemptID }},
	}
}

// RateLimiter conta apenas tentativas rejeitadas. Submissões aceitas nunca incrementam.
type RateLimiter struct {
	store    domain.CounterStore
	hasher   domain.Hasher
	counters []KeyedCounter
}

func NewRateLimiter(store domain.CounterStore, hasher domain.Hasher, counters ...KeyedCounter) *RateLimiter {
	if len(counters) == 0 {
		counters = DefaultCounters()
	}
	if hasher == nil {
		hasher = plainHasher{}
	}
	return &RateLimiter{store: store, hasher: hasher, counters: counters}
}

func (l *RateLimiter) key(c KeyedCounter, s Subject) string {
	return "rate:" + c.Name + ":" + l.hasher.Sum(c.Key(s))
}

// IsRateLimited é o OR dos contadores: basta um no teto para negar.
func (l *RateLimiter) IsRateLimited(ctx context.Context, s Subject) (bool, error) {
	for _, c := range l.counters {
		n, err := l.store.Count(ctx, l.key(c, s))
		if err != nil {
			return false, fmt.Errorf("count %s: %w", c.Name, err)
		}
		if n >= c.Ceiling {
			return true, nil
		}
	}
	return false, nil
}

// RecordFailure incrementa todos os contadores, independente da causa da rejeição.
func (l *RateLimiter) RecordFailure(ctx context.Context, s Subject) error {
	var errs []error
	for _, c := range l.counters {
		if _, err := l.store.Incr(ctx, l.key(c, s), c.TTL); err != nil {
			errs = append(errs, fmt.Errorf("incr %s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Counts devolve o valor atual de cada contador, indexado pelo nome.
func (l *RateLimiter) Counts(ctx context.Context, s Subject) (map[string]int64, error) {
	out := make(map[string]int64, len(l.counters))
	for _, c := range l.counters {
		n, err := l.store.Count(ctx, l.key(c, s))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c.Name, err)
		}
		out[c.Name] = n
	}
	return out, nil
}

type plainHasher struct{}

func (plainHasher) Sum(v string) string { return v }
