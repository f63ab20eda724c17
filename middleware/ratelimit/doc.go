// Package ratelimit é o middleware net/http de rate limit do gateway.
//
// Camadas:
//
//   - domain: identidade, limiter e eventos, sem net/http
//   - application: decisão allow/deny e cálculo do Retry-After
//   - infra: token bucket por chave (x/time/rate) e estatísticas
//   - ratelimit (este pacote): extração da chave e tradução para status/headers
//
// Fluxo:
//
//  1. Extrai a identidade (header configurado, cookie do convênio, XFF, IP)
//  2. Pede a decisão à camada application
//  3. Se bloqueado, responde 429 com Retry-After e o corpo de Options.Reject
//  4. Se permitido, segue para o roteador
//
// O binário (cmd/gateway) configura via RATE_ENABLED, RATE_RPS, RATE_BURST,
// RATE_KEY_HEADER, TRUST_XFF, RETRY_AFTER e ADD_RATELIMIT_HEADERS.
package ratelimit
