// Package config provides environment-driven configuration for the event log.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SinkConfig describes the Event Hub the sweeper delivers to.
type SinkConfig struct {
	Endpoint   string        `env:"ENDPOINT" yaml:"endpoint"`
	Path       string        `env:"PATH" yaml:"path"`
	PrimaryKey Secret        `env:"PRIMARY_KEY" yaml:"primary_key"`
	PolicyName string        `env:"POLICY_NAME" yaml:"policy_name"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" yaml:"token_ttl"`
	Timeout    time.Duration `env:"TIMEOUT" yaml:"timeout"`
}

// SweepConfig controls the background delivery worker.
type SweepConfig struct {
	Interval     time.Duration `env:"INTERVAL" yaml:"interval"`
	BatchSize    int           `env:"BATCH_SIZE" yaml:"batch_size"`
	Concurrency  int           `env:"CONCURRENCY" yaml:"concurrency"`
	RequeueAfter time.Duration `env:"REQUEUE_AFTER" yaml:"requeue_after"`
}

// Config holds all application configuration values.
type Config struct {
	Enabled        bool        `env:"EVENTLOG_ENABLED" yaml:"enabled"`
	Driver         string      `env:"EVENTLOG_DRIVER" yaml:"driver"`
	Connection     Secret      `env:"EVENTLOG_CONNECTION" yaml:"connection"`
	Sink           SinkConfig  `envPrefix:"EVENTLOG_SINK_" yaml:"sink"`
	Sweep          SweepConfig `envPrefix:"EVENTLOG_SWEEP_" yaml:"sweep"`
	HeaderDenylist []string    `env:"EVENTLOG_SANITIZE_HEADERS" envSeparator:"," yaml:"sanitize_headers"`
	DataDenylist   []string    `env:"EVENTLOG_SANITIZE_DATA" envSeparator:"," yaml:"sanitize_data"`
	ExcludeRoutes  []string    `env:"EVENTLOG_EXCLUDE_ROUTES" envSeparator:"," yaml:"exclude_routes"`
	DBMaxConns     int32       `env:"DB_MAX_CONNS" yaml:"db_max_conns"`
	Port           string      `env:"PORT" yaml:"port"`
	ListenHost     string      `env:"LISTEN_HOST" yaml:"listen_host"`
	CORSOrigins    []string    `env:"CORS_ORIGINS" envSeparator:"," yaml:"cors_origins"`
	APIToken       Secret      `env:"EVENTLOG_API_TOKEN" yaml:"api_token"`
	LogLevel       string      `env:"LOG_LEVEL" yaml:"log_level"`
	OTLPEndpoint   string      `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" yaml:"otlp_endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Enabled: true,
		Driver:  DriverPostgres,
		Sink: SinkConfig{
			PolicyName: "RootManageSharedAccessKey",
			TokenTTL:   5 * time.Minute,
			Timeout:    10 * time.Second,
		},
		Sweep: SweepConfig{
			Interval:    30 * time.Second,
			BatchSize:   100,
			Concurrency: 4,
		},
		HeaderDenylist: []string{"authorization", "cookie", "x-csrf-token", "x-xsrf-token"},
		DataDenylist:   []string{"password", "password_confirmation", "_token", "token"},
		DBMaxConns:     10,
		Port:           "3040",
		ListenHost:     "127.0.0.1",
		CORSOrigins:    []string{"http://localhost:3002"},
		LogLevel:       "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by EVENTLOG_CONFIG_FILE, and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("EVENTLOG_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config.
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ListenHost, c.Port)
}

// Active reports whether capture should run: the feature is enabled and a
// store connection is configured.
func (c *Config) Active() bool {
	return c.Enabled && c.Connection.Value() != ""
}
