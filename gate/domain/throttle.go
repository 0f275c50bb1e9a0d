package domain

// Throttle grosso na frente dos endpoints do gate, por (endpoint, cliente).
//
// Independente dos contadores de abuso do RateLimiter: serve apenas para
// conter enxurradas antes que cheguem aos stores. Cada endpoint tem o próprio
// orçamento, então leituras de /gate/config atrás de um NAT não consomem as
// fichas de /gate/submit.

import "time"

type Endpoint string

const (
	EndpointConfig Endpoint = "config"
	EndpointToken  Endpoint = "token"
	EndpointSubmit Endpoint = "submit"
)

// Rate é o orçamento de um endpoint: fichas por segundo e rajada.
type Rate struct {
	PerSecond float64
	Burst     int
}

// ThrottleKey identifica um bucket.
type ThrottleKey struct {
	Endpoint Endpoint
	Client   string
}

// Bucket consome uma ficha em now. Sem ficha, devolve quanto falta para a próxima.
type Bucket interface {
	Take(now time.Time) (ok bool, wait time.Duration)
}

// BucketStore devolve o bucket de uma chave. ok=false significa endpoint sem limite.
type BucketStore interface {
	Bucket(key ThrottleKey) (b Bucket, ok bool)
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor devolvido em Retry-After quando bloquear.
	RetryAfter time.Duration
}
