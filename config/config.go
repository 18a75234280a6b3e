// config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. JOBBOARD_HTTP_PORT.
const EnvPrefix = "JOBBOARD"

// HTTPConfig groups HTTP/HTTPS port, protocol and server timeout settings.
type HTTPConfig struct {
	HTTPPort  int  `mapstructure:"http_port"`
	HTTPSPort int  `mapstructure:"https_port"`
	UseHTTPS  bool `mapstructure:"use_https"`

	ReadTimeout       time.Duration `mapstructure:"-"`
	ReadHeaderTimeout time.Duration `mapstructure:"-"`
	WriteTimeout      time.Duration `mapstructure:"-"`
	IdleTimeout       time.Duration `mapstructure:"-"`
	ShutdownTimeout   time.Duration `mapstructure:"-"`
}

// TLSConfig holds the certificate pair for manual TLS.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// CORSConfig groups all CORS behavior and lists.
type CORSConfig struct {
	EnableCORS           bool     `mapstructure:"enable_cors"`
	CORSAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string `mapstructure:"cors_allowed_headers"`
	CORSExposedHeaders   []string `mapstructure:"cors_exposed_headers"`
	CORSAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int      `mapstructure:"cors_max_age"`
}

// DBConfig holds the connection strings and the connection manager's retry
// policy. Only MongoURI is needed by the API; the others enable auxiliary
// connections when set.
type DBConfig struct {
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	PostgresURL   string `mapstructure:"postgres_url"`
	MySQLDSN      string `mapstructure:"mysql_dsn"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisURL      string `mapstructure:"redis_url"`

	MaxAttempts   int  `mapstructure:"db_max_attempts"`
	AllowDegraded bool `mapstructure:"db_allow_degraded"`
	MaxPoolSize   int  `mapstructure:"db_max_pool_size"`
	MinPoolSize   int  `mapstructure:"db_min_pool_size"`

	BaseDelay      time.Duration `mapstructure:"-"`
	ConnectTimeout time.Duration `mapstructure:"-"`
	BoundedWait    time.Duration `mapstructure:"-"`
	ProbeInterval  time.Duration `mapstructure:"-"`
}

// CoreConfig holds the whole service configuration.
type CoreConfig struct {
	// runtime
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …

	// grouped config
	HTTP HTTPConfig `mapstructure:",squash"`
	TLS  TLSConfig  `mapstructure:",squash"`
	CORS CORSConfig `mapstructure:",squash"`
	DB   DBConfig   `mapstructure:",squash"`

	// HTTP behavior
	MaxRequestBodyBytes int64 `mapstructure:"max_request_body_bytes"`
}

// Dump returns a pretty, redacted JSON string of the config for debugging.
// Connection string credentials are masked; use at debug level only.
func (c CoreConfig) Dump() string {
	s := c.redactedCopy()
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

func (c CoreConfig) redactedCopy() CoreConfig {
	cp := c
	cp.DB.MongoURI = redactURL(c.DB.MongoURI)
	cp.DB.PostgresURL = redactURL(c.DB.PostgresURL)
	cp.DB.RedisURL = redactURL(c.DB.RedisURL)
	cp.DB.MySQLDSN = redactDSN(c.DB.MySQLDSN)
	return cp
}

// redactURL masks the password of a URL-shaped connection string.
func redactURL(s string) string {
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "[unparseable]"
	}
	return u.Redacted()
}

// redactDSN masks the password of a MySQL DSN.
func redactDSN(s string) string {
	if s == "" {
		return s
	}
	cfg, err := mysql.ParseDSN(s)
	if err != nil {
		return "[unparseable]"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = "xxxxx"
	}
	return cfg.FormatDSN()
}

// duration describes a key that is parsed with parseDurationFlexible.
type duration struct {
	key       string
	def       time.Duration
	unit      time.Duration // unit of bare numbers
	allowZero bool
	dst       func(*CoreConfig) *time.Duration
}

var durations = []duration{
	{"read_timeout", 15 * time.Second, time.Second, false, func(c *CoreConfig) *time.Duration { return &c.HTTP.ReadTimeout }},
	{"read_header_timeout", 10 * time.Second, time.Second, false, func(c *CoreConfig) *time.Duration { return &c.HTTP.ReadHeaderTimeout }},
	{"write_timeout", 60 * time.Second, time.Second, false, func(c *CoreConfig) *time.Duration { return &c.HTTP.WriteTimeout }},
	{"idle_timeout", 120 * time.Second, time.Second, false, func(c *CoreConfig) *time.Duration { return &c.HTTP.IdleTimeout }},
	{"shutdown_timeout", 15 * time.Second, time.Second, false, func(c *CoreConfig) *time.Duration { return &c.HTTP.ShutdownTimeout }},
	{"db_base_delay", 500 * time.Millisecond, time.Millisecond, true, func(c *CoreConfig) *time.Duration { return &c.DB.BaseDelay }},
	{"db_connect_timeout", 10 * time.Second, time.Second, false, func(c *CoreConfig) *time.Duration { return &c.DB.ConnectTimeout }},
	{"db_bounded_wait", 0, time.Millisecond, true, func(c *CoreConfig) *time.Duration { return &c.DB.BoundedWait }},
	{"db_probe_interval", 15 * time.Second, time.Second, false, func(c *CoreConfig) *time.Duration { return &c.DB.ProbeInterval }},
}

// Load reads the configuration using the process arguments.
func Load(logger *zap.Logger) (*CoreConfig, error) {
	return LoadArgs(logger, os.Args[1:])
}

// LoadArgs merges defaults → config.* file(s) → env vars → explicit flags
// parsed from args into one CoreConfig.
// Final precedence (highest wins): flags(explicit) > env > config > defaults.
func LoadArgs(logger *zap.Logger, args []string) (*CoreConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 0) Optionally load .env (safe: real env still wins over .env)
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded .env file")
	}

	// 1) Define flags (only *explicitly set* flags will override)
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// 2) Viper + env
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind env for all keys so Unmarshal sees them.
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}
	// MONGODB_URI is the name most hosting platforms inject.
	_ = v.BindEnv("mongo_uri", EnvPrefix+"_MONGO_URI", "MONGODB_URI")

	// 3) Optional config.* files (yaml|yml|json|toml)
	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := "config." + ext
		if _, err := os.Stat(file); err != nil {
			continue
		}
		b, err := os.ReadFile(file)
		if err != nil {
			logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			continue
		}
		logger.Info("Loaded config file", zap.String("file", file))
	}

	// 4) Defaults (lowest precedence)
	setDefaults(v)

	// 5) Apply *explicit* flags (highest precedence)
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	// 6) Normalize list keys (accept JSON strings → []string)
	if err := normalizeListKeys(logger, v,
		"cors_allowed_origins",
		"cors_allowed_methods",
		"cors_allowed_headers",
		"cors_exposed_headers",
	); err != nil {
		return nil, err
	}

	// 7) Build struct
	var cfg CoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.DB.MongoURI = strings.TrimSpace(cfg.DB.MongoURI)

	// Parse durations
	for _, d := range durations {
		val, err := parseDurationFlexible(v.Get(d.key), d.def, d.unit, d.allowZero)
		if err != nil {
			logger.Warn("invalid "+d.key+"; using default",
				zap.Any("value", v.Get(d.key)),
				zap.Duration("default", d.def),
				zap.Error(err))
		}
		*d.dst(&cfg) = val
	}

	// 8) Validate
	if err := validateCoreConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.DB.MongoURI == "" {
		logger.Warn("mongo_uri is not set; database routes will report db_misconfigured")
	}

	return &cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("jobboard", pflag.ContinueOnError)

	fs.String("env", "dev", `Runtime environment "dev"|"prod"`)
	fs.String("log_level", "debug", "Log level")

	fs.Int("http_port", 8080, "HTTP port")
	fs.Int("https_port", 443, "HTTPS port")
	fs.Bool("use_https", false, "Serve HTTPS")
	fs.String("cert_file", "", "TLS cert file")
	fs.String("key_file", "", "TLS key file")

	// Server timeouts
	fs.String("read_timeout", "15s", "HTTP read timeout")
	fs.String("read_header_timeout", "10s", "HTTP read header timeout")
	fs.String("write_timeout", "60s", "HTTP write timeout")
	fs.String("idle_timeout", "120s", "HTTP idle timeout")
	fs.String("shutdown_timeout", "15s", "Graceful shutdown window")

	// CORS lists as JSON strings or arrays
	fs.Bool("enable_cors", false, "Enable CORS")
	fs.String("cors_allowed_origins", "", `JSON array of origins, e.g. '["https://a.example","https://b.example"]'`)
	fs.String("cors_allowed_methods", "", `JSON array of methods, e.g. '["GET","POST"]'`)
	fs.String("cors_allowed_headers", "", `JSON array of headers, e.g. '["Accept","Authorization"]'`)
	fs.String("cors_exposed_headers", "", `JSON array of headers, e.g. '["Link"]'`)
	fs.Bool("cors_allow_credentials", false, "CORS: allow credentials")
	fs.Int("cors_max_age", 0, "CORS: max age seconds (0 disables cache)")

	fs.Int64("max_request_body_bytes", 2<<20, "Max HTTP request body size in bytes (0 = unlimited)")

	// Database
	fs.String("mongo_uri", "", "MongoDB connection URI (also read from MONGODB_URI)")
	fs.String("mongo_database", "jobboard", "MongoDB database name")
	fs.String("postgres_url", "", "Optional PostgreSQL connection string")
	fs.String("mysql_dsn", "", "Optional MySQL DSN")
	fs.String("sqlite_path", "", "Optional SQLite database path")
	fs.String("redis_url", "", "Optional Redis URL")
	fs.Int("db_max_attempts", 4, "Connect attempts per sequence")
	fs.String("db_base_delay", "500ms", "Backoff base delay (bare numbers are milliseconds)")
	fs.String("db_connect_timeout", "10s", "Timeout for a single connect attempt")
	fs.String("db_bounded_wait", "0", "Max time a request waits for a connection (0 = until resolved)")
	fs.String("db_probe_interval", "15s", "Liveness ping interval for SQL and Redis connections")
	fs.Bool("db_allow_degraded", false, "Serve API requests without a database instead of 503")
	fs.Int("db_max_pool_size", 50, "Max connections per pool")
	fs.Int("db_min_pool_size", 2, "Min connections per pool")

	return fs
}

func allKeys() []string {
	return []string{
		"env", "log_level",
		"http_port", "https_port", "use_https",
		"cert_file", "key_file",
		"read_timeout", "read_header_timeout", "write_timeout", "idle_timeout", "shutdown_timeout",
		"enable_cors",
		"cors_allowed_origins", "cors_allowed_methods", "cors_allowed_headers",
		"cors_exposed_headers", "cors_allow_credentials", "cors_max_age",
		"max_request_body_bytes",
		"mongo_database", "postgres_url", "mysql_dsn", "sqlite_path", "redis_url",
		"db_max_attempts", "db_base_delay", "db_connect_timeout", "db_bounded_wait",
		"db_probe_interval", "db_allow_degraded", "db_max_pool_size", "db_min_pool_size",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "debug")

	v.SetDefault("http_port", 8080)
	v.SetDefault("https_port", 443)
	v.SetDefault("use_https", false)
	v.SetDefault("cert_file", "")
	v.SetDefault("key_file", "")

	v.SetDefault("read_timeout", "15s")
	v.SetDefault("read_header_timeout", "10s")
	v.SetDefault("write_timeout", "60s")
	v.SetDefault("idle_timeout", "120s")
	v.SetDefault("shutdown_timeout", "15s")

	// Neutral CORS defaults
	v.SetDefault("enable_cors", false)
	v.SetDefault("cors_allowed_origins", []string{})
	v.SetDefault("cors_allowed_methods", []string{})
	v.SetDefault("cors_allowed_headers", []string{})
	v.SetDefault("cors_exposed_headers", []string{})
	v.SetDefault("cors_allow_credentials", false)
	v.SetDefault("cors_max_age", 0)

	v.SetDefault("max_request_body_bytes", int64(2<<20))

	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "jobboard")
	v.SetDefault("db_max_attempts", 4)
	v.SetDefault("db_base_delay", "500ms")
	v.SetDefault("db_connect_timeout", "10s")
	v.SetDefault("db_bounded_wait", "0")
	v.SetDefault("db_probe_interval", "15s")
	v.SetDefault("db_allow_degraded", false)
	v.SetDefault("db_max_pool_size", 50)
	v.SetDefault("db_min_pool_size", 2)
}

// normalizeListKeys coerces JSON-string values into []string for the given keys.
func normalizeListKeys(logger *zap.Logger, v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		val := v.Get(key)
		switch t := val.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return fmt.Errorf("config key %q expects a JSON array string, got %q: %w", key, s, err)
			}
			v.Set(key, arr)
		case []interface{}:
			arr := make([]string, 0, len(t))
			for _, e := range t {
				arr = append(arr, fmt.Sprint(e))
			}
			v.Set(key, arr)
		case []string, nil:
			// already correct or unset
		default:
			logger.Warn("unexpected type for list key; expected JSON array/string",
				zap.String("key", key), zap.Any("value", t))
		}
	}
	return nil
}

func validateCoreConfig(cfg CoreConfig) error {
	var missing []string
	var invalid []string

	if cfg.Env != "dev" && cfg.Env != "prod" {
		invalid = append(invalid, `env must be "dev" or "prod"`)
	}

	// Manual TLS requirements
	if cfg.HTTP.UseHTTPS {
		if strings.TrimSpace(cfg.TLS.CertFile) == "" || strings.TrimSpace(cfg.TLS.KeyFile) == "" {
			missing = append(missing, EnvPrefix+"_CERT_FILE and "+EnvPrefix+"_KEY_FILE (or --cert_file/--key_file) for TLS")
		}
	}

	// Port sanity
	if cfg.HTTP.HTTPPort <= 0 || cfg.HTTP.HTTPPort > 65535 {
		invalid = append(invalid, "http_port must be in 1..65535")
	}
	if cfg.HTTP.HTTPSPort <= 0 || cfg.HTTP.HTTPSPort > 65535 {
		invalid = append(invalid, "https_port must be in 1..65535")
	}
	if cfg.HTTP.UseHTTPS && cfg.HTTP.HTTPPort == cfg.HTTP.HTTPSPort {
		invalid = append(invalid, "http_port and https_port cannot be equal when use_https=true")
	}

	// CORS sanity
	if cfg.CORS.EnableCORS {
		if len(cfg.CORS.CORSAllowedOrigins) == 0 {
			missing = append(missing, "CORS: cors_allowed_origins (JSON array) required when enable_cors=true")
		}
		if len(cfg.CORS.CORSAllowedMethods) == 0 {
			missing = append(missing, "CORS: cors_allowed_methods (JSON array) required when enable_cors=true")
		}
		for _, o := range cfg.CORS.CORSAllowedOrigins {
			if o == "*" && cfg.CORS.CORSAllowCredentials {
				invalid = append(invalid, `CORS: cannot use "*" in cors_allowed_origins when cors_allow_credentials=true`)
				break
			}
		}
		if cfg.CORS.CORSMaxAge < 0 {
			invalid = append(invalid, "CORS: cors_max_age must be >= 0")
		}
	}

	// Connection manager policy
	if cfg.DB.MaxAttempts < 1 {
		invalid = append(invalid, "db_max_attempts must be >= 1")
	}
	if cfg.DB.MinPoolSize < 0 || cfg.DB.MaxPoolSize < 0 {
		invalid = append(invalid, "db_min_pool_size and db_max_pool_size must be >= 0")
	}
	if cfg.DB.MaxPoolSize > 0 && cfg.DB.MinPoolSize > cfg.DB.MaxPoolSize {
		invalid = append(invalid, "db_min_pool_size cannot exceed db_max_pool_size")
	}
	if cfg.DB.MongoDatabase == "" && cfg.DB.MongoURI != "" {
		missing = append(missing, "mongo_database")
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(parts, " | "))
}
