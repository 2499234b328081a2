package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meetsched/meetsched/internal/config"
	"github.com/meetsched/meetsched/internal/google"
	"github.com/meetsched/meetsched/internal/instrumentation"
	"github.com/meetsched/meetsched/internal/logging"
	"github.com/meetsched/meetsched/internal/server"
	"github.com/meetsched/meetsched/internal/session"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		httpAddr       string
		baseURL        string
		metricsEnabled bool
		metricsAddr    string
		debug          bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the meetsched HTTP server",
		Long: `Starts the meetsched web service: the meeting API on the main
listener, the OAuth sign-in flow, health probes, and an optional
dedicated Prometheus metrics listener.

Google OAuth credentials and the session secret are read from the
environment (GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, SESSION_SECRET).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// Flags win over environment values.
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("base-url") {
				cfg.BaseURL = baseURL
			}
			if cmd.Flags().Changed("metrics") {
				cfg.MetricsEnabled = metricsEnabled
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", config.DefaultHTTPAddr, "Listen address for the HTTP server")
	cmd.Flags().StringVar(&baseURL, "base-url", config.DefaultBaseURL, "Public base URL for OAuth redirects (HTTPS outside loopback)")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics", true, "Enable the dedicated Prometheus metrics server")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Listen address for the metrics server")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.Debug)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if !cfg.MetricsEnabled {
		instrConfig.Enabled = false
	}
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	oauthConf := google.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURL())
	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, google.NewRefresher(oauthConf), logger)
	defer sessions.Stop()

	metrics := provider.Metrics()
	if metrics != nil {
		sessions.SetRefreshObserver(metrics.RecordTokenRefresh)
	}

	srv := server.New(cfg, sessions, provider, logger)

	errCh := make(chan error, 2)

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(cfg.MetricsAddr, provider, logger)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
