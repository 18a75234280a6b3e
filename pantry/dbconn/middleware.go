package dbconn

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/jobboard/httputil"
	"go.uber.org/zap"
)

// DegradedHeader is set to "true" on responses served without a database
// connection.
const DegradedHeader = "X-Degraded-Mode"

type ctxKey int

const (
	handleKey ctxKey = iota
	degradedKey
)

// GateOptions configure Gate.
type GateOptions struct {
	// AllowDegraded lets requests through without a connection when the
	// manager is pending or exhausted. Handlers check Degraded(ctx) and skip
	// persistence. When false those requests get a 503.
	AllowDegraded bool

	// RetryAfter is advertised on 503 responses. Default: 5s.
	RetryAfter time.Duration
}

// Gate returns middleware that acquires a connection before the request
// reaches next, using the manager's configured options (including any
// bounded wait).
//
//	r.Route("/api", func(r chi.Router) {
//	    r.Use(dbconn.Gate(deps.Conn, dbconn.GateOptions{AllowDegraded: true}, logger))
//	    ...
//	})
//
// Handlers read the connection with HandleFrom.
func Gate[H Handle](m *Manager[H], opts GateOptions, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 5 * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h, err := m.Get(r.Context())
			if err == nil {
				ctx := context.WithValue(r.Context(), handleKey, h)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			switch {
			case errors.Is(err, ErrConfiguration):
				logger.Error("database not configured", zap.Error(err))
				httputil.JSONError(w, http.StatusInternalServerError,
					"db_misconfigured",
					"The database connection is not configured",
				)
				return

			case r.Context().Err() != nil:
				// Client went away; nothing useful to send.
				httputil.JSONError(w, http.StatusServiceUnavailable, "request_cancelled", "")
				return
			}

			if opts.AllowDegraded {
				logger.Debug("serving request in degraded mode",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				w.Header().Set(DegradedHeader, "true")
				ctx := context.WithValue(r.Context(), degradedKey, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			code, msg := "db_unavailable", "The database is temporarily unavailable"
			if errors.Is(err, ErrPending) {
				code, msg = "db_connecting", "The database connection is being established"
			}
			logger.Warn("rejecting request; database not ready",
				zap.String("path", r.URL.Path),
				zap.String("reason", code),
				zap.Error(err),
			)
			httputil.Unavailable(w, opts.RetryAfter, code, msg)
		})
	}
}

// HandleFrom returns the connection Gate stored in ctx.
func HandleFrom[H Handle](ctx context.Context) (H, bool) {
	h, ok := ctx.Value(handleKey).(H)
	return h, ok
}

// Degraded reports whether Gate let the request through without a
// connection.
func Degraded(ctx context.Context) bool {
	v, _ := ctx.Value(degradedKey).(bool)
	return v
}
