package infra

import (
	"context"
	"testing"
	"time"
)

func TestSubmitPool_BlocksWhenFullAndReleasesOnce(t *testing.T) {
	p := NewSubmitPool(1)

	release, ok := p.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	if p.InFlight() != 1 {
		t.Fatalf("expected 1 in flight, got %d", p.InFlight())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := p.Acquire(ctx); ok {
		t.Fatalf("expected acquire to fail while pool is full")
	}

	release()
	release()
	if p.InFlight() != 0 {
		t.Fatalf("expected double release to count once, got %d", p.InFlight())
	}

	release2, ok := p.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected acquire after release")
	}
	release2()
}

func TestSubmitPool_MinimumCapacity(t *testing.T) {
	if got := NewSubmitPool(0).Cap(); got != 1 {
		t.Fatalf("expected capacity 1, got %d", got)
	}
}
