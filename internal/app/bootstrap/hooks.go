package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/jobboard/app"
	"github.com/dalemusser/jobboard/config"
	"github.com/dalemusser/jobboard/logging"
	"github.com/dalemusser/jobboard/metrics"
	"github.com/dalemusser/jobboard/pantry/db/liveness"
	"github.com/dalemusser/jobboard/pantry/db/mongo"
	"github.com/dalemusser/jobboard/pantry/db/mysql"
	"github.com/dalemusser/jobboard/pantry/db/postgres"
	"github.com/dalemusser/jobboard/pantry/db/redis"
	"github.com/dalemusser/jobboard/pantry/db/sqlite"
	"github.com/dalemusser/jobboard/pantry/dbconn"
	"github.com/dalemusser/jobboard/pantry/health"
	"github.com/dalemusser/jobboard/pantry/pprof"
	"github.com/dalemusser/jobboard/pantry/version"
	"github.com/dalemusser/jobboard/router"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoadConfig loads the service config from flags, env and config files.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, error) {
	return config.Load(logger)
}

// ConnectDB builds one connection manager per configured database. No
// connection is opened here; the first Acquire (warm-up or request) does
// that.
func ConnectDB(_ context.Context, cfg *config.CoreConfig, logger *zap.Logger) (DBDeps, error) {
	opts := dbconn.Options{
		MaxAttempts:    cfg.DB.MaxAttempts,
		BaseDelay:      cfg.DB.BaseDelay,
		AttemptTimeout: cfg.DB.ConnectTimeout,
		BoundedWait:    cfg.DB.BoundedWait,
	}
	probe := liveness.Options{Interval: cfg.DB.ProbeInterval}

	deps := DBDeps{
		Database: cfg.DB.MongoDatabase,
		Conn: manage("mongo", cfg.DB.MongoURI,
			mongo.Dialer(mongo.Options{
				AppName:     "jobboard",
				MinPoolSize: uint64(cfg.DB.MinPoolSize),
				MaxPoolSize: uint64(cfg.DB.MaxPoolSize),
			}),
			mongo.ValidateURI, opts, logger),
	}

	if cfg.DB.PostgresURL != "" {
		m := manage("postgres", cfg.DB.PostgresURL,
			postgres.Dialer(postgres.Options{
				MaxConns: int32(cfg.DB.MaxPoolSize),
				MinConns: int32(cfg.DB.MinPoolSize),
				Probe:    probe,
			}),
			postgres.ValidateURI, opts, logger)
		deps.Aux = append(deps.Aux, named("postgres", m))
	}
	if cfg.DB.MySQLDSN != "" {
		pc := mysql.DefaultPoolConfig()
		if cfg.DB.MaxPoolSize > 0 {
			pc.MaxOpenConns = cfg.DB.MaxPoolSize
		}
		pc.Probe = probe
		m := manage("mysql", cfg.DB.MySQLDSN, mysql.Dialer(pc), mysql.ValidateDSN, opts, logger)
		deps.Aux = append(deps.Aux, named("mysql", m))
	}
	if cfg.DB.SQLitePath != "" {
		so := sqlite.DefaultOptions()
		so.Probe = probe
		m := manage("sqlite", cfg.DB.SQLitePath, sqlite.Dialer(so), sqlite.ValidatePath, opts, logger)
		deps.Aux = append(deps.Aux, named("sqlite", m))
	}
	if cfg.DB.RedisURL != "" {
		m := manage("redis", cfg.DB.RedisURL,
			redis.Dialer(redis.Options{PoolSize: cfg.DB.MaxPoolSize, Probe: probe}),
			redis.ValidateURL, opts, logger)
		deps.Aux = append(deps.Aux, named("redis", m))
	}

	names := make([]string, 0, len(deps.Aux)+1)
	for _, c := range deps.All() {
		names = append(names, c.Name)
	}
	logger.Info("database managers ready", zap.Strings("connections", names))
	return deps, nil
}

func manage[H dbconn.Handle](
	name, uri string,
	dial dbconn.DialFunc[H],
	validate func(string) error,
	opts dbconn.Options,
	logger *zap.Logger,
) *dbconn.Manager[H] {
	return dbconn.New(dial, dbconn.Config{
		URI:      uri,
		Options:  opts,
		Validate: validate,
		Observer: metrics.NewDB(name),
	}, logging.ForConn(logger, name))
}

// Warmup starts a connect sequence on every connection and waits at most
// the per-attempt timeout. Sequences that outlive the wait keep running in
// the background.
func Warmup(ctx context.Context, cfg *config.CoreConfig, deps DBDeps, logger *zap.Logger) error {
	wait := cfg.DB.ConnectTimeout
	if wait <= 0 {
		wait = dbconn.DefaultAttemptTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	conns := deps.All()
	errs := make([]error, len(conns))
	var g errgroup.Group
	for i, c := range conns {
		g.Go(func() error {
			if err := c.Warm(wctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", c.Name, err)
				return nil
			}
			logging.ForConn(logger, c.Name).Info("database warm")
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// BuildHandler wires health, metrics, diagnostics and the gated API.
func BuildHandler(cfg *config.CoreConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.Conn == nil {
		return nil, errors.New("bootstrap: DBDeps.Conn is nil")
	}

	r := router.New(cfg, logger)
	health.Mount(r, deps.Checks(), logger)
	version.Mount(r)
	r.Handle("/metrics", metrics.Handler())
	pprof.Mount(r, cfg.Env == "dev")

	r.Route("/api", func(r chi.Router) {
		r.Get("/db/state", stateHandler(deps))

		r.Group(func(r chi.Router) {
			r.Use(dbconn.Gate(deps.Conn, dbconn.GateOptions{
				AllowDegraded: cfg.DB.AllowDegraded,
				RetryAfter:    retryAfter(cfg),
			}, logger))
			r.Get("/jobs", listJobs(deps.Database, logger))
		})
	})
	return r, nil
}

// retryAfter suggests a client retry interval: the bounded wait when one
// is configured, otherwise the base backoff delay.
func retryAfter(cfg *config.CoreConfig) time.Duration {
	if cfg.DB.BoundedWait > 0 {
		return cfg.DB.BoundedWait
	}
	return cfg.DB.BaseDelay
}

// Shutdown closes every cached connection.
func Shutdown(ctx context.Context, deps DBDeps, logger *zap.Logger) error {
	var errs []error
	for _, c := range deps.All() {
		if err := c.Close(ctx); err != nil {
			logging.ForConn(logger, c.Name).Warn("closing database connection failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Hooks wires the service into the app runner.
var Hooks = app.Hooks[DBDeps]{
	Name:         "jobboard",
	LoadConfig:   LoadConfig,
	ConnectDB:    ConnectDB,
	Warmup:       Warmup,
	BuildHandler: BuildHandler,
	Shutdown:     Shutdown,
}
