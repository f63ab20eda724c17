package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sasapp-gateway/internal/logging"
	"sasapp-gateway/middleware/ratelimit"
	rldomain "sasapp-gateway/middleware/ratelimit/domain"
	rlinfra "sasapp-gateway/middleware/ratelimit/infra"
	"sasapp-gateway/middleware/requestlog"
	"sasapp-gateway/sasapp/application"
	"sasapp-gateway/sasapp/catalog"
	"sasapp-gateway/sasapp/domain"
	"sasapp-gateway/sasapp/httpapi"
	"sasapp-gateway/sasapp/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type app struct {
	handler http.Handler
	routes  int
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadRoutes junta o catálogo embutido com o ROUTES_FILE, se houver.
func loadRoutes(cfg config) ([]domain.Route, error) {
	routes := catalog.Routes()
	if cfg.routesFile == "" {
		return routes, nil
	}
	extra, err := infra.LoadRoutes(cfg.routesFile)
	if err != nil {
		return nil, err
	}
	return infra.MergeRoutes(routes, extra), nil
}

// buildApp monta tudo o que o servidor precisa. Janitors param quando ctx encerra.
func buildApp(ctx context.Context, cfg config, log zerolog.Logger) (*app, error) {
	a := &app{}

	routes, err := loadRoutes(cfg)
	if err != nil {
		return nil, err
	}
	a.routes = len(routes)

	upstreamStats := infra.NewMemoryCallStats()
	rateStats := rlinfra.NewMemoryStatsStore()

	var (
		callStats  domain.CallStats    = upstreamStats
		statsStore rldomain.StatsStore = rateStats
	)
	var (
		guard      domain.DuplicateGuard
		signatures domain.SignatureStore
	)

	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis ping error: %w", err)
		}

		guard = infra.NewRedisGuard(rdb, cfg.redisPrefix)
		signatures = infra.NewRedisSignatureStore(rdb, cfg.redisPrefix, 0)
		callStats = infra.MultiCallStats{upstreamStats, infra.NewRedisCallStats(rdb,
			infra.WithStatsPrefix(cfg.redisPrefix+":upstream"),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
		)}
		statsStore = rlinfra.MultiStatsStore{rateStats, rlinfra.NewRedisStatsStore(rdb,
			rlinfra.WithStatsPrefix(cfg.redisPrefix+":ratelimit"),
			rlinfra.WithStatsTTL(cfg.statsTTL),
			rlinfra.WithStatsBucket(cfg.statsBucket),
		)}
	} else {
		mg := infra.NewMemoryGuard()
		mg.StartJanitor(ctx)
		guard = mg
		signatures = infra.NewMemorySignatureStore()
	}

	opts := []infra.LegacyOption{
		infra.WithGetAttempts(cfg.upstreamGetAttempts, 300*time.Millisecond),
		infra.WithCallStats(callStats),
		infra.WithLegacyLogger(logging.Component(log, "legado")),
		infra.WithUserAgent("sasapp-gateway"),
	}
	slots := infra.NewSlotPool(cfg.upstreamMaxConcurrency)
	if slots != nil {
		opts = append(opts, infra.WithSlotPool(slots, cfg.upstreamAcquireTimeout))
	}
	var limits *rlinfra.Store
	if cfg.rateEnabled {
		limits = rlinfra.NewStore(cfg.rateRPS, cfg.rateBurst,
			rlinfra.WithKindTier(rldomain.KindConvenio, rldomain.Tier{RPS: cfg.rateConvenioRPS, Burst: cfg.rateConvenioBurst}),
			rlinfra.WithKindTier(rldomain.KindHeader, rldomain.Tier{RPS: cfg.rateHeaderRPS, Burst: cfg.rateHeaderBurst}),
		)
		limits.StartJanitor(ctx)
	}

	client, err := infra.NewLegacyClient(cfg.upstreamURL, cfg.upstreamTimeout, opts...)
	if err != nil {
		a.close()
		return nil, err
	}

	fw := application.Forwarder{
		Upstream:     client,
		Guard:        guard,
		DedupeWindow: cfg.dedupeWindow,
		Log:          logging.Component(log, "pipeline"),
	}

	dashboard, err := buildDashboard(fw, routes)
	if err != nil {
		a.close()
		return nil, err
	}

	check, ok := catalog.Find(routes, catalog.RouteSasCredStatus)
	if !ok {
		a.close()
		return nil, fmt.Errorf("rota %s ausente", catalog.RouteSasCredStatus)
	}
	sigSvc := application.NewSignatureService(signatures, client, check, application.NewNotifier(),
		application.WithPolling(cfg.signaturePollInterval, cfg.signaturePollMax),
		application.WithSignatureLogger(logging.Component(log, "assinatura")),
	)

	router, err := httpapi.NewRouter(httpapi.Deps{
		Routes:     routes,
		Forwarder:  fw,
		Dashboard:  dashboard,
		Signatures: sigSvc,
		Session: httpapi.SessionConfig{
			Cookie: cfg.sessionCookie,
			TTL:    cfg.sessionTTL,
			Secure: cfg.cookieSecure,
		},
		Stats: func() any {
			out := map[string]any{
				"upstream":  upstreamStats.Snapshot(),
				"ratelimit": rateStats.Snapshot(),
			}
			if slots != nil {
				out["slots"] = map[string]any{"in_flight": slots.InFlight(), "cap": slots.Cap()}
			}
			if limits != nil {
				out["ratelimit_buckets"] = limits.Sizes()
			}
			return out
		},
		Log: logging.Component(log, "http"),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	h := http.Handler(router)
	if limits != nil {
		keys := ratelimit.KeyOptions{
			Header:   cfg.rateKeyHeader,
			TrustXFF: cfg.trustXFF,
		}
		// o cookie não é assinado: só vira chave quando há faixa de convênio
		if cfg.rateConvenioRPS > 0 {
			keys.SessionCookie = cfg.sessionCookie
			keys.SessionKey = convenioKey
		}
		h = ratelimit.Middleware(ratelimit.Options{
			Store:               limits,
			Stats:               statsStore,
			Keys:                keys,
			Skip:                func(r *http.Request) bool { return !strings.HasPrefix(r.URL.Path, "/api/") },
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
			Reject:              rejectEnvelope,
		})(h)
	}
	h = requestlog.Middleware(requestlog.Options{
		Log:  logging.Component(log, "access"),
		Skip: func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})(h)

	a.handler = h
	return a, nil
}

const rateLimitMessage = "Muitas requisições. Aguarde alguns segundos e tente novamente."

// rejectEnvelope responde o 429 no mesmo envelope das demais rotas.
func rejectEnvelope(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(domain.Fail(rateLimitMessage))
}

func convenioKey(cookie string) (string, bool) {
	sess, err := domain.DecodeSession(cookie)
	if err != nil {
		return "", false
	}
	return sess.CodConvenio, true
}

func buildDashboard(fw application.Forwarder, routes []domain.Route) (application.Dashboard, error) {
	d := application.Dashboard{Forwarder: fw, Required: []string{"matricula", "empregador"}}
	for _, s := range []struct{ name, route string }{
		{"saldo", catalog.RouteAssociadoSaldo},
		{"extrato", catalog.RouteExtrato},
		{"antecipacoes", catalog.RouteAntecipacoes},
	} {
		r, ok := catalog.Find(routes, s.route)
		if !ok {
			return application.Dashboard{}, fmt.Errorf("dashboard: rota %s ausente", s.route)
		}
		d.Sections = append(d.Sections, application.DashboardSection{Name: s.name, Route: r})
	}
	return d, nil
}
