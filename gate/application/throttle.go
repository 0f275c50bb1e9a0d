package application

import (
	"time"

	"reading-gate/gate/domain"
)

// minRetryAfter é o piso do Retry-After: o header só tem resolução de segundos.
const minRetryAfter = time.Second

// Throttle decide se um cliente ainda tem fichas no bucket do endpoint.
//
// Não sabe nada sobre HTTP (headers/status), apenas devolve uma decisão.
// O Retry-After vem do próprio bucket: é o tempo até a próxima ficha.
type Throttle struct {
	Store domain.BucketStore
	Now   func() time.Time
}

func (t Throttle) Decide(ep domain.Endpoint, client string) domain.Decision {
	if t.Store == nil {
		return domain.Decision{Allowed: true}
	}
	b, ok := t.Store.Bucket(domain.ThrottleKey{Endpoint: ep, Client: client})
	if !ok {
		return domain.Decision{Allowed: true}
	}

	now := time.Now()
	if t.Now != nil {
		now = t.Now()
	}
	allowed, wait := b.Take(now)
	if allowed {
		return domain.Decision{Allowed: true}
	}
	if wait < minRetryAfter {
		wait = minRetryAfter
	}
	return domain.Decision{Allowed: false, RetryAfter: wait}
}
