// Package domain define os contratos do rate limit do gateway: identidade do
// cliente, limiter por chave e eventos de decisão.
//
// Não depende de net/http.
package domain
