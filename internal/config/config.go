package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/seantiz/timelock/internal/engine"
	"github.com/seantiz/timelock/internal/store"
)

const (
	defaultListenAddr  = ":8080"
	defaultSQLitePath  = "timelock.db"
	defaultJournalPath = "timelock-journal.db"

	envPrefix = "TIMELOCK"

	// EnvConfigFile names an optional config file read before the environment.
	EnvConfigFile = "TIMELOCK_CONFIG"
)

// Config holds application configuration. Values come from defaults, then an
// optional config file, then TIMELOCK_* environment variables, with later
// sources winning. Nested keys map to variables with "." replaced by "_",
// e.g. store.driver is TIMELOCK_STORE_DRIVER.
type Config struct {
	ListenAddr   string     `mapstructure:"listen_addr"`
	LogLevelName string     `mapstructure:"log_level"`
	LogLevel     slog.Level `mapstructure:"-"`

	// Admin, if set, bootstraps the administrator on serve.
	Admin    string `mapstructure:"admin"`
	MinDelay uint64 `mapstructure:"min_delay"`
	MaxDelay uint64 `mapstructure:"max_delay"`

	Store   StoreConfig   `mapstructure:"store"`
	Journal JournalConfig `mapstructure:"journal"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// StoreConfig selects and configures the durable store driver.
type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// Options converts the store section to driver options.
func (s StoreConfig) Options() store.Options {
	return store.Options{
		SQLitePath:    s.SQLitePath,
		PostgresDSN:   s.PostgresDSN,
		RedisAddr:     s.RedisAddr,
		RedisPassword: s.RedisPassword,
		RedisDB:       s.RedisDB,
	}
}

// JournalConfig locates the notification journal. An empty path disables it.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// NotifyConfig configures external notification sinks. The Redis sink is
// enabled when RedisChannel is set and store.redis_addr is configured.
type NotifyConfig struct {
	RedisChannel string `mapstructure:"redis_channel"`
}

// AuthConfig configures bearer token verification. Without a secret every
// caller is anonymous and all mutations are rejected.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// TracingConfig configures OTLP trace export. An empty endpoint disables it.
type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// EngineOptions returns the configured delay bounds.
func (c Config) EngineOptions() engine.Options {
	return engine.Options{MinDelay: c.MinDelay, MaxDelay: c.MaxDelay}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can bind it on Unmarshal.
	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("log_level", "info")
	v.SetDefault("admin", "")
	v.SetDefault("min_delay", engine.DefaultMinDelay)
	v.SetDefault("max_delay", engine.DefaultMaxDelay)
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.sqlite_path", defaultSQLitePath)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("journal.path", defaultJournalPath)
	v.SetDefault("notify.redis_channel", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "timelockd")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.insecure", false)
	return v
}

// Load reads configuration. If path is empty, TIMELOCK_CONFIG is consulted;
// if that is empty too, only defaults and the environment apply.
func Load(path string) (Config, error) {
	v := newViper()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if err := c.EngineOptions().Validate(); err != nil {
		errs = append(errs, err)
	}
	if !store.DefaultRegistry().Has(c.Store.Driver) {
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Store.Driver {
	case store.DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case store.DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	case store.DriverRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis driver"))
		}
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	return errors.Join(errs...)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
