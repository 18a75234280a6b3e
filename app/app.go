// app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/jobboard/config"
	"github.com/dalemusser/jobboard/httputil"
	"github.com/dalemusser/jobboard/logging"
	"github.com/dalemusser/jobboard/metrics"
	"github.com/dalemusser/jobboard/pantry/version"
	"github.com/dalemusser/jobboard/server"
	"go.uber.org/zap"
)

// Hooks are the integration points the runner calls, in order.
type Hooks[D any] struct {
	// Name is used only for logging.
	Name string

	// LoadConfig returns the validated service config.
	LoadConfig func(logger *zap.Logger) (*config.CoreConfig, error)

	// ConnectDB builds the connection managers. It must not block on the
	// network: an unreachable database is not a startup failure.
	ConnectDB func(ctx context.Context, cfg *config.CoreConfig, logger *zap.Logger) (D, error)

	// Warmup, if set, starts the first connect sequences. Its error is
	// logged and otherwise ignored.
	Warmup func(ctx context.Context, cfg *config.CoreConfig, deps D, logger *zap.Logger) error

	// BuildHandler constructs the root http.Handler.
	BuildHandler func(cfg *config.CoreConfig, deps D, logger *zap.Logger) (http.Handler, error)

	// Shutdown, if set, releases deps after the server has stopped.
	Shutdown func(ctx context.Context, deps D, logger *zap.Logger) error
}

// shutdownBudget bounds Hooks.Shutdown when the HTTP config has no
// shutdown timeout.
const shutdownBudget = 10 * time.Second

// Run executes the startup sequence:
//
//  1. Bootstrap logger
//  2. Load config (Hooks.LoadConfig)
//  3. Build final logger from config
//  4. Register default metrics
//  5. Build connection managers (Hooks.ConnectDB)
//  6. Wire shutdown signals to a context
//  7. Kick off warm-up (Hooks.Warmup), never fatal
//  8. Build the HTTP handler (Hooks.BuildHandler)
//  9. Serve until shutdown, then run Hooks.Shutdown
func Run[D any](ctx context.Context, hooks Hooks[D]) error {
	if hooks.LoadConfig == nil || hooks.ConnectDB == nil || hooks.BuildHandler == nil {
		return errors.New("app: LoadConfig, ConnectDB and BuildHandler are required")
	}

	bootstrap := logging.BootstrapLogger(hooks.Name)
	defer bootstrap.Sync()
	bootstrap.Info("bootstrap logger initialized")

	cfg, err := hooks.LoadConfig(bootstrap)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return fmt.Errorf("load config: %w", err)
	}
	bootstrap.Info("config loaded",
		zap.String("env", cfg.Env),
		zap.String("log_level", cfg.LogLevel),
	)

	logger, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Env:     cfg.Env,
		Service: hooks.Name,
		Version: version.String(),
	})
	if err != nil {
		bootstrap.Error("logger build failed", zap.Error(err))
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("starting")
	logger.Debug("effective config", zap.String("config", cfg.Dump()))
	httputil.SetLogger(logger)

	metrics.RegisterDefault(logger)

	deps, err := hooks.ConnectDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		return fmt.Errorf("connect db: %w", err)
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	if hooks.Warmup != nil {
		if err := hooks.Warmup(ctx, cfg, deps, logger); err != nil {
			logger.Warn("database warm-up did not complete; serving anyway", zap.Error(err))
		}
	}

	handler, err := hooks.BuildHandler(cfg, deps, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return fmt.Errorf("build handler: %w", err)
	}

	serveErr := server.ListenAndServeWithContext(ctx, cfg, handler, logger)
	if serveErr != nil {
		logger.Error("server exited with error", zap.Error(serveErr))
	}

	if hooks.Shutdown != nil {
		budget := cfg.HTTP.ShutdownTimeout
		if budget <= 0 {
			budget = shutdownBudget
		}
		sctx, scancel := context.WithTimeout(context.Background(), budget)
		defer scancel()
		if err := hooks.Shutdown(sctx, deps, logger); err != nil {
			logger.Warn("shutdown hook failed", zap.Error(err))
		}
	}

	if serveErr != nil {
		return serveErr
	}
	logger.Info("server stopped")
	return nil
}
