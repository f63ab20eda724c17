package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"sasapp-gateway/sasapp/domain"

	"github.com/gin-gonic/gin"
)

var (
	codConvenioKeys = []string{"cod_convenio", "codigo", "id_convenio", "convenio"}
	nomeKeys        = []string{"nome", "nome_fantasia", "razao_social"}
	cnpjKeys        = []string{"cnpj"}
)

func (s *server) currentSession(c *gin.Context) (domain.ConvenioSession, error) {
	raw, err := c.Cookie(s.Session.Cookie)
	if err != nil {
		return domain.ConvenioSession{}, domain.ErrSessionMissing
	}
	return domain.DecodeSession(raw)
}

// convenioLogin encaminha ao script de login e, se o legado aceitar,
// grava o cookie de sessão com os dados devolvidos.
func (s *server) convenioLogin(route domain.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, cleanup, err := readInput(c, s.MaxBody)
		if err != nil {
			s.fail(c, route.Name, err)
			return
		}
		defer cleanup()

		res, err := s.Forwarder.Forward(c.Request.Context(), route, in)
		if err != nil {
			s.fail(c, route.Name, err)
			return
		}
		if !res.Envelope.Success {
			c.JSON(res.Code, res.Envelope)
			return
		}

		sess, ok := sessionFrom(res.Envelope.Data, in.Fields.Get("usuario"))
		if !ok {
			s.fail(c, route.Name, &domain.UpstreamError{
				Kind:   domain.KindStatus,
				Script: route.Script,
				Err:    fmt.Errorf("login sem código de convênio"),
			})
			return
		}
		sess.EmitidoEm = time.Now().UTC()

		token, err := domain.EncodeSession(sess)
		if err != nil {
			s.fail(c, route.Name, err)
			return
		}
		s.setCookie(c, token, int(s.Session.TTL.Seconds()))

		s.Log.Info().Str("cod_convenio", sess.CodConvenio).Msg("login de convênio")
		c.JSON(http.StatusOK, domain.Ok(sess, res.Envelope.Message))
	}
}

func sessionFrom(data any, usuario string) (domain.ConvenioSession, bool) {
	obj, ok := data.(map[string]any)
	if !ok {
		return domain.ConvenioSession{}, false
	}
	// alguns scripts devolvem {"convenio": {...}}
	if inner, ok := obj["convenio"].(map[string]any); ok {
		obj = inner
	}
	sess := domain.ConvenioSession{
		CodConvenio: pick(obj, codConvenioKeys),
		Nome:        pick(obj, nomeKeys),
		CNPJ:        pick(obj, cnpjKeys),
		Usuario:     strings.TrimSpace(usuario),
	}
	return sess, sess.CodConvenio != ""
}

func pick(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := scalar(obj[k]); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func (s *server) sessao(c *gin.Context) {
	sess, err := s.currentSession(c)
	if err != nil {
		s.fail(c, "sessao", err)
		return
	}
	c.JSON(http.StatusOK, domain.Ok(sess, ""))
}

// verificarSessao diz se o registro guardado no browser ainda pertence ao
// convênio do cookie. Sem cookie válido a resposta é apenas valido=false.
func (s *server) verificarSessao(c *gin.Context) {
	var cached domain.ConvenioSession
	if err := bindJSON(c, &cached); err != nil {
		s.fail(c, "sessao_verificar", err)
		return
	}

	valido := false
	if sess, err := s.currentSession(c); err == nil {
		valido = domain.SameIdentity(cached, sess)
	}
	c.JSON(http.StatusOK, gin.H{"valido": valido})
}

func (s *server) logout(c *gin.Context) {
	s.setCookie(c, "", -1)
	c.JSON(http.StatusOK, domain.Ok(nil, "Sessão encerrada."))
}

func (s *server) setCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.Session.Cookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
