// router/router.go
package router

import (
	"github.com/dalemusser/jobboard/config"
	"github.com/dalemusser/jobboard/logging"
	"github.com/dalemusser/jobboard/metrics"
	"github.com/dalemusser/jobboard/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New creates a chi.Router with the standard middleware stack:
// RequestID, RealIP, Recoverer, CORS (when enabled), body size limit,
// HTTP metrics, request logging, and JSON 404/405 handlers.
//
// Health, metrics and API routes are mounted by the caller.
func New(cfg *config.CoreConfig, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Recoverer(logger))
	r.Use(middleware.CORSFromConfig(cfg))
	r.Use(middleware.LimitBodySize(cfg.MaxRequestBodyBytes))
	r.Use(metrics.HTTPMetrics)
	r.Use(logging.RequestLogger(logger))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
