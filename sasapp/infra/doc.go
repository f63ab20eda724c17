// Package infra contém implementações concretas dos contratos de sasapp/domain.
//
//   - LegacyClient: cliente HTTP dos scripts PHP (form, multipart, query, json),
//     com limite de chamadas em voo e retentativa de GET (retry-go)
//   - MemoryGuard/RedisGuard: supressão de submissões duplicadas
//   - Memory/RedisSignatureStore: status de assinatura SasCred
//   - Memory/RedisCallStats: estatísticas de chamadas ao legado
//   - LoadRoutes: catálogo extra de rotas em YAML
package infra
