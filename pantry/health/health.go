// health/health.go
package health

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/jobboard/httputil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Status values reported by Handler.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Check represents a single health probe. It should return nil if the
// dependency is healthy, an error wrapped with Degraded if the service can
// still answer but the dependency is not usable right now, or any other
// error if the service is broken. The ctx passed in is derived from the
// incoming request context.
type Check func(ctx context.Context) error

// Response is the JSON structure returned by the health handler.
type Response struct {
	Status string            `json:"status"`
	Live   bool              `json:"live"`
	Checks map[string]string `json:"checks,omitempty"`
}

type degradedError struct{ err error }

func (d *degradedError) Error() string {
	if d.err == nil {
		return "degraded"
	}
	return d.err.Error()
}

func (d *degradedError) Unwrap() error { return d.err }

// Degraded marks err as a degraded (recoverable) condition rather than a
// hard failure.
func Degraded(err error) error {
	return &degradedError{err: err}
}

// IsDegraded reports whether err was marked with Degraded.
func IsDegraded(err error) bool {
	var d *degradedError
	return errors.As(err, &d)
}

// Evaluate runs checks and builds the response without writing it.
// Live is true only when every check passed.
func Evaluate(ctx context.Context, checks map[string]Check, logger *zap.Logger) Response {
	if len(checks) == 0 {
		return Response{Status: StatusOK, Live: true}
	}

	results := make(map[string]string, len(checks))
	status := StatusOK

	for name, check := range checks {
		if check == nil {
			results[name] = StatusOK
			continue
		}
		err := check(ctx)
		if err == nil {
			results[name] = StatusOK
			continue
		}

		kind := StatusError
		if IsDegraded(err) {
			kind = StatusDegraded
		}
		msg := kind
		if err.Error() != "" {
			msg = kind + ": " + err.Error()
		}
		results[name] = msg

		if kind == StatusError || status == StatusOK {
			status = kind
		}
		if logger != nil {
			logger.Warn("health check not ok",
				zap.String("check", name),
				zap.String("status", kind),
				zap.Error(err),
			)
		}
	}

	return Response{
		Status: status,
		Live:   status == StatusOK,
		Checks: results,
	}
}

// Handler returns an http.Handler that runs the provided checks on each
// request and returns a JSON response.
// If checks is nil or empty, it behaves as a simple liveness probe:
//
//	{ "status": "ok", "live": true }
//
// A degraded check keeps the status code at 200 so load balancers do not
// pull an instance that is still reconnecting:
//
//	{ "status": "degraded", "live": false, "checks": { "db": "degraded: ..." } }
//
// Any other failing check responds with 503 and status "error".
func Handler(checks map[string]Check, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := Evaluate(r.Context(), checks, logger)
		code := http.StatusOK
		if resp.Status == StatusError {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, resp)
	})
}

// Mount attaches a /health route to the given chi.Router using the provided
// checks and logger.
//
// Example:
//
//	checks := map[string]health.Check{
//	    "db": deps.Conn.HealthCheck(),
//	}
//	health.Mount(r, checks, logger)
func Mount(r chi.Router, checks map[string]Check, logger *zap.Logger) {
	r.Method(http.MethodGet, "/health", Handler(checks, logger))
}

// MountAt is like Mount but allows specifying a custom path, e.g. "/ready"
// or "/live".
func MountAt(r chi.Router, path string, checks map[string]Check, logger *zap.Logger) {
	r.Method(http.MethodGet, path, Handler(checks, logger))
}
