// logging/logging.go
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the shape of the service logger.
type Options struct {
	// Level is a zap level name. Unknown names fall back to info.
	Level string
	// Env "prod" logs JSON; anything else uses the console encoder.
	Env string
	// Service and Version are attached to every entry when set.
	Service string
	Version string
}

// BootstrapLogger returns a development logger at info level for use
// before config is loaded. It never fails; on error it returns a no-op.
func BootstrapLogger(service string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	if service != "" {
		logger = logger.With(zap.String("service", service))
	}
	return logger
}

// ValidLogLevels lists all valid zap log levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}

// ParseLevel maps a level name (case-insensitive, surrounding space
// ignored) to a zap level. ok is false for names outside ValidLogLevels.
func ParseLevel(name string) (lvl zapcore.Level, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, valid := range ValidLogLevels {
		if name == valid {
			if err := lvl.UnmarshalText([]byte(name)); err != nil {
				return zapcore.InfoLevel, false
			}
			return lvl, true
		}
	}
	return zapcore.InfoLevel, false
}

// IsValidLogLevel reports whether level names a zap level.
func IsValidLogLevel(level string) bool {
	_, ok := ParseLevel(level)
	return ok
}

// New constructs the service logger, writing to stderr. A bad level is
// reported through the new logger itself at warn.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Env == "prod" {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	lvl, ok := ParseLevel(opts.Level)
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	fields := make(map[string]interface{}, 2)
	if opts.Service != "" {
		fields["service"] = opts.Service
	}
	if opts.Version != "" {
		fields["version"] = opts.Version
	}
	cfg.InitialFields = fields

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn("invalid log level; defaulting to info",
			zap.String("level", opts.Level),
			zap.Strings("valid", ValidLogLevels),
		)
	}
	return logger, nil
}

// ForConn scopes logger to one managed database connection. Entries are
// named "db.<name>" and carry a conn field.
func ForConn(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.Named("db." + name).With(zap.String("conn", name))
}
