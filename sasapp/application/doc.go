// Package application contém os casos de uso do SasApp sem net/http do lado
// do browser: o pipeline de repasse ao legado (Forwarder + Interpret), o
// resumo do associado (Dashboard) e o acompanhamento de assinaturas SasCred.
package application
