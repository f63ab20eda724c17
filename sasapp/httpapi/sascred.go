package httpapi

import (
	"errors"
	"net/http"

	"sasapp-gateway/sasapp/application"
	"sasapp-gateway/sasapp/domain"

	"github.com/gin-gonic/gin"
)

// webhook recebe eventos do provedor de assinatura. Depois de decodificado o
// evento, sempre responde 200: falha de gravação só vai para o log, porque a
// consulta ao legado cobre o estado perdido.
func (s *server) webhook(c *gin.Context) {
	var ev application.WebhookEvent
	if err := bindJSON(c, &ev); err != nil {
		s.fail(c, "sascred_webhook", err)
		return
	}

	st, err := s.Signatures.HandleWebhook(c.Request.Context(), ev)
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		s.fail(c, "sascred_webhook", err)
		return
	case err != nil:
		s.Log.Error().Err(err).Str("event", ev.EventType).Msg("webhook não gravado")
	}
	c.JSON(http.StatusOK, domain.Ok(st, ""))
}

// assinatura devolve o estado conhecido. Com o legado fora do ar ainda
// responde 200 com o último estado, a tela segue consultando.
func (s *server) assinatura(c *gin.Context) {
	st, err := s.Signatures.Status(c.Request.Context(), c.Param("token"))
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			s.fail(c, "sascred_assinatura", err)
			return
		}
		s.Log.Warn().Err(err).Str("doc_token", st.DocToken).Msg("status de assinatura indisponível")
	}
	c.JSON(http.StatusOK, domain.Ok(st, ""))
}

func (s *server) aguardar(c *gin.Context) {
	st, err := s.Signatures.Await(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.fail(c, "sascred_aguardar", err)
		return
	}
	c.JSON(http.StatusOK, domain.Ok(st, ""))
}
