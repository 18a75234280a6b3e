// middleware/cors.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/jobboard/config"
	"github.com/dalemusser/jobboard/pantry/dbconn"
	"github.com/go-chi/cors"
)

// CORSFromConfig returns a CORS middleware built from cfg.CORS, or an
// identity middleware when CORS is disabled, so it is always safe to
//
//	r.Use(middleware.CORSFromConfig(cfg))
//
// The degraded-mode and Retry-After headers are always exposed so browser
// clients can tell a 503 from a degraded success.
func CORSFromConfig(cfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if cfg == nil || !cfg.CORS.EnableCORS {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	exposed := append([]string{dbconn.DegradedHeader, "Retry-After"}, cfg.CORS.CORSExposedHeaders...)

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORS.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORS.CORSAllowedHeaders,
		ExposedHeaders:   exposed,
		AllowCredentials: cfg.CORS.CORSAllowCredentials,
		MaxAge:           cfg.CORS.CORSMaxAge,
	})
}
