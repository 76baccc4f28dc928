package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"depivot/internal/config"
	"depivot/internal/dataprocessing"
	"depivot/internal/middleware"
	"depivot/internal/quality"
)

// NewRouter wires the API routes with the standard middleware chain.
func NewRouter(cfg *config.Config, pipeline *dataprocessing.Pipeline, metrics *Metrics, version string, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)

	unpivotHandler := NewUnpivotHandler(pipeline, metrics, logger)
	unpivotHandler.quality = quality.NewEngine(cfg.Quality, logger)
	healthHandler := NewHealthHandler(version, logger)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", healthHandler.HealthCheck)
		api.Get("/version", healthHandler.Version)
		api.With(rateLimiter.Handler).Post("/unpivot", unpivotHandler.Unpivot)
	})

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return r
}
