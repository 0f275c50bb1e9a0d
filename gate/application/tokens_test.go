package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reading-gate/gate/domain"
	"reading-gate/gate/infra"
)

func TestTokenService_IssueThenCheck(t *testing.T) {
	ctx := context.Background()
	svc := TokenService{Store: infra.NewMemoryStore()}

	tok, err := svc.Issue(ctx, "vid-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(tok) != 20 {
		t.Fatalf("expected 20 chars, got %d", len(tok))
	}
	for _, r := range tok {
		if !strings.ContainsRune(tokenAlphabet, r) {
			t.Fatalf("expected alphanumeric token, got %q", tok)
		}
	}

	if err := svc.Check(ctx, "vid-1", tok); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	// não consome: retry legítimo continua válido
	if err := svc.Check(ctx, "vid-1", tok); err != nil {
		t.Fatalf("expected token to survive check, got %v", err)
	}
}

func TestTokenService_ReissueOverwrites(t *testing.T) {
	ctx := context.Background()
	svc := TokenService{Store: infra.NewMemoryStore()}

	first, _ := svc.Issue(ctx, "vid-1")
	second, _ := svc.Issue(ctx, "vid-1")
	if first == second {
		t.Fatalf("expected different tokens")
	}
	if err := svc.Check(ctx, "vid-1", first); !errors.Is(err, domain.ErrTokenMismatch) {
		t.Fatalf("expected old token to mismatch, got %v", err)
	}
	if err := svc.Check(ctx, "vid-1", second); err != nil {
		t.Fatalf("expected latest token valid, got %v", err)
	}
}

func TestTokenService_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := TokenService{Store: infra.NewMemoryStore(infra.WithClock(func() time.Time { return now }))}

	tok, _ := svc.Issue(ctx, "vid-1")
	now = now.Add(TokenTTL - time.Second)
	if err := svc.Check(ctx, "vid-1", tok); err != nil {
		t.Fatalf("expected token valid before TTL, got %v", err)
	}
	now = now.Add(time.Second)
	if err := svc.Check(ctx, "vid-1", tok); !errors.Is(err, domain.ErrTokenMissing) {
		t.Fatalf("expected missing after TTL, got %v", err)
	}
}

func TestTokenService_MissingAndEmptyVisitor(t *testing.T) {
	ctx := context.Background()
	svc := TokenService{Store: infra.NewMemoryStore()}

	if err := svc.Check(ctx, "nobody", "x"); !errors.Is(err, domain.ErrTokenMissing) {
		t.Fatalf("expected missing, got %v", err)
	}
	if err := svc.Check(ctx, "", "x"); !errors.Is(err, domain.ErrTokenMissing) {
		t.Fatalf("expected missing for empty visitor, got %v", err)
	}
	if _, err := svc.Issue(ctx, ""); err == nil {
		t.Fatalf("expected error issuing for empty visitor")
	}
}
