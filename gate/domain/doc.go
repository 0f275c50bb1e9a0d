// Package domain define contratos e tipos de domínio do gate de leitura.
//
// Este pacote não depende de net/http nem de implementações concretas
// (Redis, SQL, memória). A intenção é permitir testes de unidade puros do
// pipeline de submissão e desacoplar as regras de detalhes de infraestrutura.
package domain
