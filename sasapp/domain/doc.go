// Package domain define os tipos e contratos do SasApp: envelope de resposta,
// erros classificados, rotas declarativas, sessão de convênio, status de
// assinatura, a limpeza de respostas PHP (Scrub/DecodeLenient) e as portas
// (interfaces) para o backend legado.
//
// Não depende de gin nem de implementações concretas. De net/http usa apenas
// as constantes de status, já que o envelope carrega o código a devolver.
package domain
