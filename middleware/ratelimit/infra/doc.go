// Package infra implementa os contratos do rate limit: token bucket por
// chave (x/time/rate) e estatísticas de decisão em memória ou Redis.
package infra
