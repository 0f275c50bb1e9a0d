package application

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"reading-gate/gate/domain"
)

const (
	TokenTTL    = 10 * time.Minute
	tokenLength = 20
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TokenService prova que o modal foi de fato servido ao visitante antes de
// uma submissão ser aceita.
type TokenService struct {
	Store domain.TokenStore
	TTL   time.Duration
}

// Issue gera um segredo novo e sobrescreve o anterior do mesmo visitante.
func (s TokenService) Issue(ctx context.Context, visitorID string) (string, error) {
	if visitorID == "" {
		return "", errors.New("visitor id is required")
	}
	secret, err := randomToken(tokenLength)
	if err != nil {
		return "", fmt.Errorf("generate gate token: %w", err)
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = TokenTTL
	}
	if err := s.Store.Put(ctx, visitorID, secret, ttl); err != nil {
		return "", fmt.Errorf("store gate token: %w", err)
	}
	return secret, nil
}

// Check não consome o token: retries legítimos dentro do TTL continuam válidos.
func (s TokenService) Check(ctx context.Context, visitorID, presented string) error {
	if visitorID == "" {
		return domain.ErrTokenMissing
	}
	stored, ok, err := s.Store.Get(ctx, visitorID)
	if err != nil {
		return fmt.Errorf("load gate token: %w", err)
	}
	if !ok || stored == "" {
		return domain.ErrTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return domain.ErrTokenMismatch
	}
	return nil
}

// randomToken sorteia n caracteres alfanuméricos sem viés de módulo.
func randomToken(n int) (string, error) {
	const max = 256 - (256 % len(tokenAlphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= max {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
