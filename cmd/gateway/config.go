package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type config struct {
	listenAddr string
	logLevel   string
	logFormat  string

	rateEnabled   bool
	rateRPS       float64
	rateBurst     int
	rateKeyHeader string
	trustXFF      bool
	retryAfter    time.Duration
	addHeaders    bool

	// faixas próprias; 0 usa RATE_RPS/RATE_BURST
	rateConvenioRPS   float64
	rateConvenioBurst int
	rateHeaderRPS     float64
	rateHeaderBurst   int

	upstreamURL            string
	upstreamTimeout        time.Duration
	upstreamMaxConcurrency int
	upstreamAcquireTimeout time.Duration
	upstreamGetAttempts    uint

	dedupeWindow time.Duration
	routesFile   string

	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string
	statsTTL      time.Duration
	statsBucket   string

	sessionCookie string
	sessionTTL    time.Duration
	cookieSecure  bool

	signaturePollInterval time.Duration
	signaturePollMax      int
}

// defaults tem tudo menos RATE_RPS e RATE_BURST, que dependem de saber se
// foram informados (ver readConfig).
var defaults = map[string]any{
	"listen_addr":           ":8080",
	"log_level":             "info",
	"log_format":            "json",
	"rate_enabled":          true,
	"trust_xff":             false,
	"retry_after":           time.Second,
	"add_ratelimit_headers": false,
	"rate_convenio_rps":     0,
	"rate_convenio_burst":   0,
	"rate_header_rps":       0,
	"rate_header_burst":     0,

	"upstream_url":             "https://sas.makecard.com.br",
	"upstream_timeout":         20 * time.Second,
	"upstream_max_concurrency": 50,
	"upstream_acquire_timeout": 2 * time.Second,
	"upstream_get_attempts":    2,

	"dedupe_window": time.Minute,

	"redis_db":     0,
	"redis_prefix": "sasapp",
	"stats_ttl":    24 * time.Hour,
	"stats_bucket": "minute",

	"session_cookie": "sasapp_convenio",
	"session_ttl":    12 * time.Hour,
	"cookie_secure":  true,

	"signature_poll_interval": 5 * time.Second,
	"signature_poll_max":      24,
}

// newViper lê variáveis de ambiente (LISTEN_ADDR, RATE_RPS...) e, se
// informado, um arquivo de config com as mesmas chaves em minúsculas.
// Ambiente vence o arquivo.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	// sem default, mas precisam ser procuradas no ambiente
	for _, k := range []string{"rate_rps", "rate_burst", "rate_key_header", "routes_file", "redis_addr", "redis_password"} {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("lendo %s: %w", configFile, err)
		}
	}
	return v, nil
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{}
	cfg.listenAddr = v.GetString("listen_addr")
	cfg.logLevel = v.GetString("log_level")
	cfg.logFormat = v.GetString("log_format")

	cfg.rateEnabled = v.GetBool("rate_enabled")
	cfg.rateRPS = 10
	if v.IsSet("rate_rps") {
		cfg.rateRPS = v.GetFloat64("rate_rps")
	}
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 dá a impressão de que
	// o limiter não funciona, porque as primeiras ~20 passam.
	if v.IsSet("rate_burst") {
		cfg.rateBurst = v.GetInt("rate_burst")
	} else {
		cfg.rateBurst = 20
		if v.IsSet("rate_rps") && cfg.rateRPS > 0 && cfg.rateRPS < 1 {
			cfg.rateBurst = 1
		}
	}
	cfg.rateKeyHeader = strings.TrimSpace(v.GetString("rate_key_header"))
	cfg.trustXFF = v.GetBool("trust_xff")
	cfg.retryAfter = v.GetDuration("retry_after")
	cfg.addHeaders = v.GetBool("add_ratelimit_headers")
	cfg.rateConvenioRPS = v.GetFloat64("rate_convenio_rps")
	cfg.rateConvenioBurst = v.GetInt("rate_convenio_burst")
	cfg.rateHeaderRPS = v.GetFloat64("rate_header_rps")
	cfg.rateHeaderBurst = v.GetInt("rate_header_burst")

	cfg.upstreamURL = strings.TrimSpace(v.GetString("upstream_url"))
	cfg.upstreamTimeout = v.GetDuration("upstream_timeout")
	cfg.upstreamMaxConcurrency = v.GetInt("upstream_max_concurrency")
	cfg.upstreamAcquireTimeout = v.GetDuration("upstream_acquire_timeout")
	attempts := v.GetInt("upstream_get_attempts")

	cfg.dedupeWindow = v.GetDuration("dedupe_window")
	cfg.routesFile = strings.TrimSpace(v.GetString("routes_file"))

	cfg.redisAddr = strings.TrimSpace(v.GetString("redis_addr"))
	cfg.redisPassword = v.GetString("redis_password")
	cfg.redisDB = v.GetInt("redis_db")
	cfg.redisPrefix = strings.Trim(v.GetString("redis_prefix"), ":")
	cfg.statsTTL = v.GetDuration("stats_ttl")
	cfg.statsBucket = strings.ToLower(strings.TrimSpace(v.GetString("stats_bucket")))

	cfg.sessionCookie = strings.TrimSpace(v.GetString("session_cookie"))
	cfg.sessionTTL = v.GetDuration("session_ttl")
	cfg.cookieSecure = v.GetBool("cookie_secure")

	cfg.signaturePollInterval = v.GetDuration("signature_poll_interval")
	cfg.signaturePollMax = v.GetInt("signature_poll_max")

	if u, err := url.Parse(cfg.upstreamURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return config{}, errors.New("UPSTREAM_URL must be an absolute http(s) URL")
	}
	if cfg.rateRPS <= 0 {
		return config{}, errors.New("RATE_RPS must be > 0")
	}
	if cfg.rateBurst <= 0 {
		return config{}, errors.New("RATE_BURST must be > 0")
	}
	if cfg.rateConvenioRPS < 0 || cfg.rateConvenioBurst < 0 || cfg.rateHeaderRPS < 0 || cfg.rateHeaderBurst < 0 {
		return config{}, errors.New("RATE_CONVENIO_* and RATE_HEADER_* must be >= 0")
	}
	if cfg.upstreamTimeout <= 0 {
		return config{}, errors.New("UPSTREAM_TIMEOUT must be > 0")
	}
	if cfg.upstreamMaxConcurrency < 0 {
		return config{}, errors.New("UPSTREAM_MAX_CONCURRENCY must be >= 0")
	}
	if attempts < 1 {
		return config{}, errors.New("UPSTREAM_GET_ATTEMPTS must be >= 1")
	}
	cfg.upstreamGetAttempts = uint(attempts)
	if cfg.dedupeWindow <= 0 {
		return config{}, errors.New("DEDUPE_WINDOW must be > 0")
	}
	if cfg.statsBucket != "minute" && cfg.statsBucket != "none" {
		return config{}, errors.New("STATS_BUCKET must be minute or none")
	}
	if cfg.sessionCookie == "" {
		return config{}, errors.New("SESSION_COOKIE must not be empty")
	}
	if cfg.sessionTTL <= 0 {
		return config{}, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.signaturePollInterval <= 0 || cfg.signaturePollMax < 1 {
		return config{}, errors.New("SIGNATURE_POLL_INTERVAL must be > 0 and SIGNATURE_POLL_MAX >= 1")
	}
	return cfg, nil
}

// writeTimeout cobre o long-poll de assinatura, que pode passar dos 30s padrão.
func (c config) writeTimeout() time.Duration {
	poll := c.signaturePollInterval*time.Duration(c.signaturePollMax) + 10*time.Second
	return max(30*time.Second, poll)
}
