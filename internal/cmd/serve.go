package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/config"
	errwrap "github.com/adpilot/adpilot/internal/errors"
	"github.com/adpilot/adpilot/internal/metrics"
	"github.com/adpilot/adpilot/internal/observability"
	"github.com/adpilot/adpilot/internal/server"
	"github.com/adpilot/adpilot/internal/server/handlers"
)

const defaultShutdownTimeout = 10 * time.Second

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read and validate configuration

Endpoints:
  POST /v1/abtests/evaluate   Evaluate posted variants
  GET  /v1/limits             Live per-platform limiter state
  GET  /health[/live|/ready|/startup], /version, /metrics

On shutdown the server stops accepting requests, drains pending cost
records, closes the store and flushes logs.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()

	observability.InitServerLogger(identity.BinaryName, viper.GetString("logging.level"), namespace)
	log := observability.ServerLogger

	metricsEnabled := viper.GetBool("metrics.enabled")
	if metricsEnabled {
		port := viper.GetInt("metrics.port")
		if port == 0 {
			port = observability.DefaultMetricsPort
		}
		if err := observability.InitMetrics(identity.BinaryName, port, namespace); err != nil {
			log.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
	}

	log.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("host", serverHost),
		zap.Int("port", serverPort),
		zap.Bool("metrics_enabled", metricsEnabled),
		zap.Int("metrics_port", observability.GetMetricsPort()))

	rt, err := newRuntime(ctx)
	if err != nil {
		log.Error("Failed to initialize runtime", zap.Error(err))
		return err
	}

	handlers.InitHealthManager(versionInfo.Version)
	registerHealthChecks(handlers.GetHealthManager(), identity, rt, metricsEnabled)
	handlers.SetAppIdentity(identity)
	handlers.SetPlatforms(buildRegistry(rt.cfg.Platforms).Platforms())

	srv := server.New(serverHost, serverPort, server.Options{
		Limits:       rt.executor.Limiter,
		ReadTimeout:  rt.cfg.Server.ReadTimeout,
		WriteTimeout: rt.cfg.Server.WriteTimeout,
		IdleTimeout:  rt.cfg.Server.IdleTimeout,
		Pprof:        rt.cfg.Debug.PprofEnabled,
	})

	shutdownTimeout := viper.GetDuration("server.shutdown_timeout")
	if shutdownTimeout == 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	registerShutdown(srv, rt, shutdownTimeout)
	signals.OnReload(reloadConfig)

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		log.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	metrics.SetServerStartTime(time.Now())

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting HTTP server...", zap.String("host", serverHost), zap.Int("port", serverPort))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	go func() {
		if err := signals.Listen(ctx); err != nil {
			log.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}

// registerShutdown installs the shutdown steps. signals runs handlers LIFO,
// so the HTTP server stops first and the logger flushes last.
func registerShutdown(srv *server.Server, rt *appRuntime, timeout time.Duration) {
	log := observability.ServerLogger

	signals.OnShutdown(func(ctx context.Context) error {
		log.Info("Flushing logger...")
		if err := log.Sync(); err != nil {
			log.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		log.Info("Draining cost records and closing store...")
		rt.Close()
		if err := observability.StopMetrics(); err != nil {
			log.Warn("Metrics exporter stop returned error", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		log.Info("HTTP server stopped gracefully")
		return nil
	})
}

// reloadConfig re-reads the config file and validates the layered config.
// Limiter budgets are fixed at startup, so changed limits apply on restart.
func reloadConfig(ctx context.Context) error {
	log := observability.ServerLogger
	log.Info("Received SIGHUP: reloading configuration")

	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		log.Error("Failed to reload config file", zap.String("file", viper.ConfigFileUsed()), zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	if _, err := config.Load(ctx); err != nil {
		log.Error("Reloaded configuration is invalid", zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	log.Info("Configuration reloaded; executor limits take effect on restart",
		zap.String("file", viper.ConfigFileUsed()))
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
