package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const minAPITokenLen = 16

func (c *Config) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateSweep(); err != nil {
		return err
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if c.Sink.PrimaryKey.Value() != "" {
		if _, err := base64.StdEncoding.DecodeString(c.Sink.PrimaryKey.Value()); err != nil {
			return fmt.Errorf("EVENTLOG_SINK_PRIMARY_KEY must be valid base64: %w", err)
		}
	}

	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Driver {
	case DriverPostgres:
		if c.Connection.Value() == "" {
			return nil
		}

		dbURL, err := url.Parse(c.Connection.Value())
		if err != nil {
			return fmt.Errorf("EVENTLOG_CONNECTION is not a valid URL: %w", err)
		}

		if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
			return fmt.Errorf("EVENTLOG_CONNECTION scheme must be postgres:// or postgresql://")
		}

		if dbURL.Hostname() == "" {
			return fmt.Errorf("EVENTLOG_CONNECTION must include a host")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("EVENTLOG_DRIVER must be 'postgres' or 'sqlite', got %q", c.Driver)
	}

	if c.DBMaxConns < 1 || c.DBMaxConns > 100 {
		return fmt.Errorf("DB_MAX_CONNS must be between 1 and 100")
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if t := c.APIToken.Value(); t != "" && len(t) < minAPITokenLen {
		return fmt.Errorf("EVENTLOG_API_TOKEN must be at least %d characters", minAPITokenLen)
	}

	validHosts := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"0.0.0.0":   true,
		"::":        true,
	}
	if !validHosts[c.ListenHost] {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateSweep() error {
	if c.Sweep.BatchSize < 1 || c.Sweep.BatchSize > 10000 {
		return fmt.Errorf("EVENTLOG_SWEEP_BATCH_SIZE must be between 1 and 10000")
	}

	if c.Sweep.Concurrency < 1 || c.Sweep.Concurrency > 64 {
		return fmt.Errorf("EVENTLOG_SWEEP_CONCURRENCY must be between 1 and 64")
	}

	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("EVENTLOG_SWEEP_INTERVAL must be positive")
	}

	if c.Sweep.RequeueAfter < 0 {
		return fmt.Errorf("EVENTLOG_SWEEP_REQUEUE_AFTER must not be negative")
	}

	if c.Sink.TokenTTL <= 0 {
		return fmt.Errorf("EVENTLOG_SINK_TOKEN_TTL must be positive")
	}

	return nil
}

// ValidateSink checks the settings delivery needs. Capture alone does not
// require a sink, so this is called by the delivery commands only.
func (c *Config) ValidateSink() error {
	if c.Sink.Endpoint == "" {
		return fmt.Errorf("EVENTLOG_SINK_ENDPOINT is required")
	}

	u, err := url.Parse(c.Sink.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("EVENTLOG_SINK_ENDPOINT %q must have scheme and host", c.Sink.Endpoint)
	}

	if c.Sink.Path == "" {
		return fmt.Errorf("EVENTLOG_SINK_PATH is required")
	}

	if c.Sink.PrimaryKey.Value() == "" {
		return fmt.Errorf("EVENTLOG_SINK_PRIMARY_KEY is required")
	}

	if c.Sink.PolicyName == "" {
		return fmt.Errorf("EVENTLOG_SINK_POLICY_NAME is required")
	}

	return nil
}
