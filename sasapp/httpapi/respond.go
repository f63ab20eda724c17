package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"sasapp-gateway/sasapp/domain"

	"github.com/gin-gonic/gin"
)

// fail escreve o envelope de erro. Falhas 5xx são logadas com o erro interno,
// o browser só recebe a mensagem pública.
func (s *server) fail(c *gin.Context, route string, err error) {
	code := domain.HTTPStatus(err)

	var de *domain.DuplicateError
	if errors.As(err, &de) && de.Window > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(de.Window.Seconds()))))
	}

	ev := s.Log.Warn()
	if code >= http.StatusInternalServerError {
		ev = s.Log.Error()
	}
	ev.Err(err).Str("route", route).Int("status", code).Msg("requisição falhou")

	c.AbortWithStatusJSON(code, domain.Fail(domain.PublicMessage(err)))
}
