package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix is prepended to every environment variable override, e.g. ACTIVITYTRACKER_POSTGRES_HOST.
const EnvPrefix = "ACTIVITYTRACKER_"

type Config struct {
	Environment string `toml:"environment"`

	// postgres
	PostgresHost     string `toml:"postgres_host" env:"POSTGRES_HOST, overwrite"`
	PostgresPort     string `toml:"postgres_port" env:"POSTGRES_PORT, overwrite"`
	PostgresDBName   string `toml:"postgres_db_name" env:"POSTGRES_DB_NAME, overwrite"`
	PostgresUser     string `toml:"postgres_user" env:"POSTGRES_USER, overwrite"`
	PostgresPassword string `toml:"postgres_password" env:"POSTGRES_PASSWORD, overwrite"`
	PostgresSSLMode  string `toml:"postgres_ssl_mode" env:"POSTGRES_SSL_MODE, overwrite"`

	// migrations
	CleanBeforeMigrate bool `toml:"clean_before_migrate" env:"CLEAN_BEFORE_MIGRATE, overwrite"`

	// logging
	LogLevel      string `toml:"log_level" env:"LOG_LEVEL, overwrite"`
	LogsPath      string `toml:"logs_path" env:"LOGS_PATH, overwrite"`
	LogToStdout   bool   `toml:"log_to_stdout" env:"LOG_TO_STDOUT, overwrite"`
	LogFormatJSON bool   `toml:"log_format_json" env:"LOG_FORMAT_JSON, overwrite"`
	SentryEnabled bool   `toml:"sentry_enabled" env:"SENTRY_ENABLED, overwrite"`

	// telemetry
	TracingEnabled bool   `toml:"tracing_enabled" env:"TRACING_ENABLED, overwrite"`
	MetricsHost    string `toml:"metrics_host" env:"METRICS_HOST, overwrite"`
	MetricsPort    int    `toml:"metrics_port" env:"METRICS_PORT, overwrite"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path, picks the section for env and applies
// environment variable overrides on top of it.
func Load(env, path string) (*Config, error) {
	return LoadWithLookuper(context.Background(), env, path, envconfig.OsLookuper())
}

func LoadWithLookuper(ctx context.Context, env, path string, lookuper envconfig.Lookuper) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}

	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}
	if cfg.PostgresSSLMode == "" {
		cfg.PostgresSSLMode = "disable"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.PostgresHost == "" {
		errs = append(errs, errors.New("postgres host not set"))
	}
	if c.PostgresPort == "" {
		errs = append(errs, errors.New("postgres port not set"))
	}
	if c.PostgresDBName == "" {
		errs = append(errs, errors.New("postgres db name not set"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid metrics port: %d", c.MetricsPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
