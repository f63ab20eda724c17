// Package httpapi expõe as rotas do SasApp para o browser usando gin.
//
// O roteador fica atrás da cadeia net/http do gateway (requestlog e
// ratelimit), então aqui só existe o que é específico de cada endpoint.
package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"sasapp-gateway/sasapp/application"
	"sasapp-gateway/sasapp/catalog"
	"sasapp-gateway/sasapp/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	DefaultSessionCookie = "sasapp_convenio"
	DefaultSessionTTL    = 12 * time.Hour
	DefaultMaxBody       = 20 << 20
)

// SessionConfig controla o cookie de sessão do convênio.
type SessionConfig struct {
	Cookie string
	TTL    time.Duration
	Secure bool
}

// Deps reúne o que o roteador precisa. Signatures e Stats são opcionais.
type Deps struct {
	Routes     []domain.Route
	Forwarder  application.Forwarder
	Dashboard  application.Dashboard
	Signatures *application.SignatureService
	Session    SessionConfig
	// Stats devolve o snapshot exposto em /internal/stats.
	Stats   func() any
	MaxBody int64
	Log     zerolog.Logger
}

type server struct {
	Deps
}

type endpoint struct {
	method, path string
	h            gin.HandlerFunc
}

// NewRouter registra as rotas do catálogo e os endpoints especiais.
// Rotas repetidas (mesmo método e path) são erro, não panic do gin.
func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Session.Cookie == "" {
		d.Session.Cookie = DefaultSessionCookie
	}
	if d.Session.TTL <= 0 {
		d.Session.TTL = DefaultSessionTTL
	}
	if d.MaxBody <= 0 {
		d.MaxBody = DefaultMaxBody
	}
	s := &server{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), s.limitBody)
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, domain.Fail("Rota não encontrada."))
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, domain.Fail("Método não permitido."))
	})

	seen := map[string]bool{}
	handle := func(method, path string, h gin.HandlerFunc) error {
		k := method + " " + path
		if seen[k] {
			return fmt.Errorf("rota repetida: %s", k)
		}
		seen[k] = true
		r.Handle(method, path, h)
		return nil
	}

	for _, route := range d.Routes {
		h := s.proxy(route)
		if route.Name == catalog.RouteConvenioLogin {
			h = s.convenioLogin(route)
		}
		if err := handle(route.Method, route.Path, h); err != nil {
			return nil, err
		}
	}

	special := []endpoint{
		{http.MethodGet, "/healthz", s.healthz},
		{http.MethodGet, "/internal/stats", s.stats},
		{http.MethodGet, "/api/convenio/sessao", s.sessao},
		{http.MethodPost, "/api/convenio/sessao/verificar", s.verificarSessao},
		{http.MethodPost, "/api/convenio/logout", s.logout},
		{http.MethodPost, "/api/associado/dashboard", s.dashboard},
	}
	if d.Signatures != nil {
		special = append(special,
			endpoint{http.MethodPost, "/api/sascred/webhook", s.webhook},
			endpoint{http.MethodGet, "/api/sascred/assinatura/:token", s.assinatura},
			endpoint{http.MethodGet, "/api/sascred/assinatura/:token/aguardar", s.aguardar},
		)
	}
	for _, sp := range special {
		if err := handle(sp.method, sp.path, sp.h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (s *server) limitBody(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxBody)
	}
	c.Next()
}

// proxy é o handler genérico: lê a entrada, injeta a sessão quando a rota
// pede e delega ao Forwarder.
func (s *server) proxy(route domain.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, cleanup, err := readInput(c, s.MaxBody)
		if err != nil {
			s.fail(c, route.Name, err)
			return
		}
		defer cleanup()

		if route.Session {
			sess, err := s.currentSession(c)
			if err != nil {
				s.fail(c, route.Name, err)
				return
			}
			in.Fields.Set("cod_convenio", sess.CodConvenio)
		}

		res, err := s.Forwarder.Forward(c.Request.Context(), route, in)
		if err != nil {
			s.fail(c, route.Name, err)
			return
		}
		c.JSON(res.Code, res.Envelope)
	}
}

func (s *server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) stats(c *gin.Context) {
	if s.Stats == nil {
		c.JSON(http.StatusNotFound, domain.Fail("Estatísticas em memória desativadas."))
		return
	}
	c.JSON(http.StatusOK, domain.Ok(s.Stats(), ""))
}

func (s *server) dashboard(c *gin.Context) {
	in, cleanup, err := readInput(c, s.MaxBody)
	if err != nil {
		s.fail(c, "dashboard", err)
		return
	}
	defer cleanup()

	res, err := s.Dashboard.Resumo(c.Request.Context(), in.Fields)
	if err != nil {
		s.fail(c, "dashboard", err)
		return
	}
	c.JSON(res.Code, res.Envelope)
}
