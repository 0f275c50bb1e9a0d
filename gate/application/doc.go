// Package application contém os casos de uso do gate de leitura: emissão e
// checagem de token, contadores de abuso, dedup de email e o pipeline de
// submissão que orquestra tudo.
//
// Depende apenas do pacote domain e não conhece net/http.
// Ex.: Pipeline.Submit(ctx, sub) devolve um Outcome ou uma *domain.Rejection.
package application
