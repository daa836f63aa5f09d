// Package config provides server configuration loaded from a TOML file and
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:Load"

// Supported database types.
const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Config holds dbinspect-rpc configuration. Precedence, lowest first:
// built-in defaults, the TOML file, environment variables, then a DSN given
// on the command line.
type Config struct {
	// Database connection. For sqlite, Name is the database file path.
	Type     string `toml:"type" envconfig:"DB_TYPE"`
	Host     string `toml:"host" envconfig:"DB_HOST"`
	Port     int    `toml:"port" envconfig:"DB_PORT"`
	User     string `toml:"user" envconfig:"DB_USER"`
	Password string `toml:"password" envconfig:"DB_PASS"`
	Name     string `toml:"name" envconfig:"DB_NAME"`
	// Schema scopes introspection. Empty means the dialect default
	// (database name for mysql, "public" for postgres, "main" for sqlite).
	Schema  string `toml:"schema" envconfig:"DB_SCHEMA"`
	SSLMode string `toml:"sslmode" envconfig:"DB_SSLMODE"`
	// DSN, when set, is used verbatim instead of the fields above.
	DSN string `toml:"dsn" envconfig:"DB_DSN"`

	// QueryTimeout bounds each statement. Zero disables the bound.
	QueryTimeout Duration `toml:"query_timeout" envconfig:"MCP_QUERY_TIMEOUT"`
	MaxRows      int      `toml:"max_rows" envconfig:"MCP_MAX_ROWS"`

	LogLevel string `toml:"log_level" envconfig:"LOG_LEVEL"`
	// Telemetry writes otel spans and metrics to stderr when true.
	Telemetry bool `toml:"telemetry" envconfig:"OTEL_STDOUT"`
}

// Duration is a time.Duration decodable from TOML strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for toml and envconfig.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// postgresSSLModes are the sslmode values lib/pq accepts. An empty mode lets
// the driver pick its default (require).
var postgresSSLModes = []string{"disable", "require", "verify-ca", "verify-full"}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Type:     TypeMySQL,
		Host:     "localhost",
		User:     "root",
		MaxRows:  10000,
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the optional TOML file at path
// and the environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", logPrefix, path, err)
		}
	}
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	return &c, nil
}

// Validate checks the configuration is usable for serving.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeMySQL, TypePostgres, TypeSQLite:
	default:
		return fmt.Errorf("%s - unsupported DB_TYPE %q", logPrefix, c.Type)
	}
	if c.DSN == "" && c.Name == "" {
		return fmt.Errorf("%s - DB_NAME or DB_DSN is required", logPrefix)
	}
	if c.Type == TypePostgres && c.SSLMode != "" && !slices.Contains(postgresSSLModes, c.SSLMode) {
		return fmt.Errorf("%s - DB_SSLMODE %q not supported, use one of %s",
			logPrefix, c.SSLMode, strings.Join(postgresSSLModes, ", "))
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%s - DB_PORT %d out of range", logPrefix, c.Port)
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("%s - MCP_MAX_ROWS must be positive", logPrefix)
	}
	if c.QueryTimeout.Duration < 0 {
		return fmt.Errorf("%s - MCP_QUERY_TIMEOUT must not be negative", logPrefix)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	return nil
}

// ParseLevel maps LOG_LEVEL values onto slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", level)
	}
	return l, nil
}
