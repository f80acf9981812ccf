package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/migadu/msgset/helpers"
)

// Config is the top-level configuration loaded from config.toml.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	HTTPAPI HTTPAPIConfig `toml:"http_api"`
	Store   StoreConfig   `toml:"store"`
	IMAP    IMAPConfig    `toml:"imap"`
}

// LoggingConfig controls log output, format and level.
type LoggingConfig struct {
	Output string `toml:"output"` // "stderr", "stdout", "syslog" or a file path
	Format string `toml:"format"` // "console" or "json"
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
}

// HTTPAPIConfig configures the HTTP API server.
type HTTPAPIConfig struct {
	Start        bool     `toml:"start"`
	Addr         string   `toml:"addr"`
	APIKey       string   `toml:"api_key"` // plain key, or "bcrypt:<hash>" for a hashed key
	AllowedHosts []string `toml:"allowed_hosts"`
	TLS          bool     `toml:"tls"`
	TLSCertFile  string   `toml:"tls_cert_file"`
	TLSKeyFile   string   `toml:"tls_key_file"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	// Backend is "sqlite", "postgres" or "s3".
	Backend  string         `toml:"backend"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
}

// SQLiteConfig configures the local sqlite record store.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig configures the PostgreSQL record store.
type PostgresConfig struct {
	Host         string `toml:"host"`
	Port         string `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Name         string `toml:"name"`
	TLSMode      bool   `toml:"tls"`
	MaxConns     int    `toml:"max_conns"`
	MinConns     int    `toml:"min_conns"`
	QueryTimeout string `toml:"query_timeout"` // e.g. "30s"
}

// GetQueryTimeout parses the query timeout, defaulting to 30 seconds.
func (p *PostgresConfig) GetQueryTimeout() (time.Duration, error) {
	if p.QueryTimeout == "" {
		return 30 * time.Second, nil
	}
	return helpers.ParseDuration(p.QueryTimeout)
}

// S3Config configures the S3 record store.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	KeyPrefix string `toml:"key_prefix"`
	UseTLS    bool   `toml:"tls"`
	Trace     bool   `toml:"trace"`
}

// IMAPConfig configures the IMAP collaborator used to resolve full-mailbox
// sets and to execute batched move/copy/flag operations.
type IMAPConfig struct {
	Addr               string `toml:"addr"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	TLS                bool   `toml:"tls"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	CommandTimeout     string `toml:"command_timeout"` // per-command deadline, e.g. "30s"
	BatchSize          int    `toml:"batch_size"`      // initial chunk size for batched commands
}

// GetCommandTimeout parses the per-command timeout, defaulting to 30 seconds.
func (c *IMAPConfig) GetCommandTimeout() (time.Duration, error) {
	if c.CommandTimeout == "" {
		return 30 * time.Second, nil
	}
	return helpers.ParseDuration(c.CommandTimeout)
}

// NewDefaultConfig returns a Config with conservative defaults; values from
// the TOML file override them.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		HTTPAPI: HTTPAPIConfig{
			Addr: "localhost:8980",
		},
		Store: StoreConfig{
			Backend: "sqlite",
			SQLite:  SQLiteConfig{Path: "msgset.db"},
			Postgres: PostgresConfig{
				Host: "localhost",
				Port: "5432",
				User: "postgres",
				Name: "msgset_db",
			},
		},
		IMAP: IMAPConfig{
			TLS:       true,
			BatchSize: 500,
		},
	}
}

// Load reads and validates a TOML configuration file on top of the
// defaults.
func Load(path string) (Config, error) {
	cfg := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("config file %s not found: %w", path, err)
		}
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that TOML decoding cannot.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required for the sqlite backend")
		}
	case "postgres":
		if c.Store.Postgres.Host == "" || c.Store.Postgres.Name == "" {
			return fmt.Errorf("store.postgres.host and store.postgres.name are required for the postgres backend")
		}
		if _, err := c.Store.Postgres.GetQueryTimeout(); err != nil {
			return fmt.Errorf("store.postgres.query_timeout: %w", err)
		}
	case "s3":
		if c.Store.S3.Endpoint == "" || c.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3.endpoint and store.s3.bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want sqlite, postgres or s3)", c.Store.Backend)
	}

	if c.HTTPAPI.Start {
		if c.HTTPAPI.APIKey == "" {
			return fmt.Errorf("http_api.api_key is required when the HTTP API is enabled")
		}
		if c.HTTPAPI.TLS && (c.HTTPAPI.TLSCertFile == "" || c.HTTPAPI.TLSKeyFile == "") {
			return fmt.Errorf("http_api.tls_cert_file and http_api.tls_key_file are required when TLS is enabled")
		}
	}

	if c.IMAP.Addr != "" {
		if _, err := c.IMAP.GetCommandTimeout(); err != nil {
			return fmt.Errorf("imap.command_timeout: %w", err)
		}
		if c.IMAP.BatchSize <= 0 {
			return fmt.Errorf("imap.batch_size must be >= 1")
		}
	}

	return nil
}
