package server

import (
	"context"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/appid"
	"github.com/adpilot/adpilot/internal/observability"
	"github.com/adpilot/adpilot/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Health probes
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint proxies the Prometheus exporter
	s.router.Get("/metrics", MetricsHandler)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/abtests/evaluate", handlers.EvaluateHandler)
		r.Get("/limits", handlers.LimitsHandler(s.opts.Limits))
	})

	if s.opts.Pprof {
		s.router.Mount("/debug", chimw.Profiler())
	}

	// Admin signal endpoint (optional, requires ADPILOT_ADMIN_TOKEN)
	s.registerAdminEndpoint()
}

const (
	adminSignalPath      = "/admin/signal"
	adminSignalRateLimit = 10 // per minute
	adminSignalRateBurst = 5
)

// registerAdminEndpoint exposes gofulmen's signal handler (reload, shutdown)
// when <PREFIX>ADMIN_TOKEN is set. The token is a bearer credential.
func (s *Server) registerAdminEndpoint() {
	envPrefix := appid.EnvPrefix(context.Background())
	tokenVar := envPrefix + "ADMIN_TOKEN"
	adminToken := os.Getenv(tokenVar)
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled", zap.String("env", tokenVar))
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: adminSignalRateLimit,
		RateBurst: adminSignalRateBurst,
	})
	s.router.Post(adminSignalPath, handler.ServeHTTP)

	if logger != nil {
		logger.Warn("Admin signal endpoint enabled; keep this server off the public internet",
			zap.String("path", adminSignalPath),
			zap.Int("rate_limit_per_min", adminSignalRateLimit),
			zap.Int("rate_burst", adminSignalRateBurst))
	}
}
