package main

import (
	"net/http"

	"github.com/rs/zerolog"
)

func logRequests(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("Alguém acessou o legado")
		next.ServeHTTP(w, r)
	})
}
