// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore: tokens, contadores e marcas de dedup em memória, com TTL preguiçoso + janitor
//   - RedisStore: os mesmos contratos sobre Redis (SET EX, MULTI INCR EXPIRE)
//   - SQLLeadStore: persistência de leads em SQLite (modernc) ou Postgres (lib/pq)
//   - ThrottleStore: token bucket por (endpoint, cliente) usando golang.org/x/time/rate
//   - JWTSigner: nonces anti-forgery e credencial de desbloqueio (HS256)
//   - SubmitPool: semáforo que limita submissões simultâneas
//   - stats: memória, Redis e Prometheus
package infra
