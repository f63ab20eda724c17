package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sasapp-gateway/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Backend do SasApp na frente do sistema legado",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "arquivo de configuração (yaml); o ambiente vence o arquivo")

	load := func() (config, error) {
		v, err := newViper(configFile)
		if err != nil {
			return config{}, err
		}
		return readConfig(v)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Sobe o servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	routes := &cobra.Command{
		Use:   "routes",
		Short: "Lista as rotas efetivas (catálogo + ROUTES_FILE)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			table, err := loadRoutes(cfg)
			if err != nil {
				return err
			}
			writeRoutesTable(cmd.OutOrStdout(), table)
			return nil
		},
	}

	root.AddCommand(serve, routes)
	return root
}

func runServe(parent context.Context, cfg config) error {
	log := logging.New(logging.Config{Level: cfg.logLevel, Format: cfg.logFormat})
	gin.SetMode(gin.ReleaseMode)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.writeTimeout(),
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.listenAddr).
		Str("upstream", cfg.upstreamURL).
		Int("routes", app.routes).
		Msg("gateway listening")
	log.Info().
		Bool("enabled", cfg.rateEnabled).
		Float64("rps", cfg.rateRPS).
		Int("burst", cfg.rateBurst).
		Float64("convenio_rps", cfg.rateConvenioRPS).
		Float64("header_rps", cfg.rateHeaderRPS).
		Str("key_header", cfg.rateKeyHeader).
		Bool("trust_xff", cfg.trustXFF).
		Msg("rate limit")
	log.Info().
		Int("max_concurrency", cfg.upstreamMaxConcurrency).
		Dur("acquire_timeout", cfg.upstreamAcquireTimeout).
		Uint("get_attempts", cfg.upstreamGetAttempts).
		Bool("redis", cfg.redisAddr != "").
		Msg("upstream")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		return err
	}
	log.Info().Msg("gateway stopped")
	return nil
}
