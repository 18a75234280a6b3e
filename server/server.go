// server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/dalemusser/jobboard/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WithShutdownSignals returns a context that is canceled when the process
// receives SIGINT or SIGTERM, or when the returned cancel is called.
func WithShutdownSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			if logger != nil {
				logger.Info("shutdown signal received", zap.Any("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
		// sigCh is left open; nothing reads it after Stop.
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// ListenAndServeWithContext serves handler over HTTP, or over HTTPS with
// the configured certificate pair, until ctx is canceled. Shutdown is
// graceful within cfg.HTTP.ShutdownTimeout.
func ListenAndServeWithContext(
	ctx context.Context,
	cfg *config.CoreConfig,
	handler http.Handler,
	logger *zap.Logger,
) error {
	if cfg == nil {
		return errors.New("ListenAndServeWithContext: cfg is nil")
	}
	if handler == nil {
		return errors.New("ListenAndServeWithContext: handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := newServer(cfg, handler, logger)

	ln, err := listen(cfg, logger)
	if err != nil {
		return err
	}

	var redirect *http.Server
	if cfg.HTTP.UseHTTPS && cfg.HTTP.HTTPPort > 0 {
		redirect = newServer(cfg, redirectHandler(cfg.HTTP.HTTPSPort), logger)
		redirect.Addr = ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
		logger.Info("HTTP->HTTPS redirect listening", zap.String("addr", redirect.Addr))
	}
	return serve(ctx, srv, ln, redirect, cfg, logger)
}

func newServer(cfg *config.CoreConfig, handler http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	// Route stdlib error logs into zap at Warn level.
	if stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel); err == nil {
		srv.ErrorLog = stdlog
	}
	return srv
}

// listen opens the primary listener, wrapped in TLS when use_https is set.
func listen(cfg *config.CoreConfig, logger *zap.Logger) (net.Listener, error) {
	if !cfg.HTTP.UseHTTPS {
		addr := ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("listen http %s: %w", addr, err)
		}
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		return ln, nil
	}

	if err := validateTLSFiles(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
		var perm *permissionError
		if !errors.As(err, &perm) || cfg.Env == "prod" {
			return nil, err
		}
		logger.Warn("TLS key file security warning (would block in prod)", zap.Error(err))
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS cert/key: %w", err)
	}

	addr := ":" + strconv.Itoa(cfg.HTTP.HTTPSPort)
	base, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen https %s: %w", addr, err)
	}
	logger.Info("HTTPS server listening",
		zap.String("addr", base.Addr().String()),
		zap.String("cert_file", cfg.TLS.CertFile))
	return tls.NewListener(base, &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}), nil
}

// serve runs srv on ln, plus the optional redirect server, until ctx is
// canceled or either server fails. A failing redirect server stops both.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, redirect *http.Server, cfg *config.CoreConfig, logger *zap.Logger) error {
	serveErr := make(chan error, 2)
	go func() {
		serveErr <- ignoreClosed(srv.Serve(ln))
	}()
	if redirect != nil {
		go func() {
			if err := ignoreClosed(redirect.ListenAndServe()); err != nil {
				serveErr <- fmt.Errorf("redirect server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-serveErr:
		if runErr == nil {
			return nil
		}
	case <-ctx.Done():
		logger.Info("shutting down server…")
	}

	// ctx may already be done; the shutdown window starts now.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if redirect != nil {
		if err := redirect.Shutdown(shutdownCtx); err != nil {
			logger.Warn("redirect server shutdown", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("server error: %w", runErr)
	}
	logger.Info("server stopped gracefully")
	return nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// permissionError reports a key file readable by group or others.
type permissionError struct {
	file string
	mode os.FileMode
}

func (e *permissionError) Error() string {
	return fmt.Sprintf("TLS key file %s has overly permissive permissions %o (recommended: 0600)", e.file, e.mode)
}

// validateTLSFiles checks that the certificate and key are regular files
// and that the key is not group or world accessible.
func validateTLSFiles(certFile, keyFile string) error {
	for _, f := range []struct{ kind, path string }{{"certificate", certFile}, {"key", keyFile}} {
		info, err := os.Stat(f.path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("TLS %s file does not exist: %s", f.kind, f.path)
			}
			return fmt.Errorf("cannot access TLS %s file %s: %w", f.kind, f.path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("TLS %s path is a directory, not a file: %s", f.kind, f.path)
		}
		// Unix permission bits mean nothing on Windows.
		if f.kind == "key" && runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
			return &permissionError{file: f.path, mode: info.Mode().Perm()}
		}
	}
	return nil
}
