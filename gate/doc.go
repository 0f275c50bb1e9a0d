// Package gate fornece o adapter HTTP (net/http) do gate de leitura.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (token, contadores, dedup, pipeline) sem net/http
//   - infra: implementações concretas (memória, Redis, SQL, JWT, token bucket, semáforo)
//   - gate (este pacote): handlers, cookies de identidade, middlewares e
//     tradução de *domain.Rejection para status/JSON
//
// Fluxo de uma submissão:
//
//  1. Throttle por (endpoint, IP) (429 + Retry-After) e limite de concorrência (503)
//  2. Nonce anti-forgery (403)
//  3. Cookies de identidade (visitante e tentativa) garantidos
//  4. application.Pipeline.Submit decide
//  5. statusFor traduz a decisão; sucesso grava o cookie de desbloqueio
//
// Client implementa o outro lado do protocolo para o simulador e os testes e2e.
package gate
