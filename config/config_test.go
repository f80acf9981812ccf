package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, ``)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "msgset.db", cfg.Store.SQLite.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 500, cfg.IMAP.BatchSize)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"

[store]
backend = "postgres"

[store.postgres]
host = "db.example.com"
name = "sets"
query_timeout = "45s"

[imap]
addr = "imap.example.com:993"
username = "sync"
password = "secret"
batch_size = 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "db.example.com", cfg.Store.Postgres.Host)

	timeout, err := cfg.Store.Postgres.GetQueryTimeout()
	require.NoError(t, err)
	assert.Equal(t, "45s", timeout.String())
	assert.Equal(t, 250, cfg.IMAP.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "redis" },
			wantErr: "unknown store backend",
		},
		{
			name:    "sqlite path required",
			mutate:  func(c *Config) { c.Store.SQLite.Path = "" },
			wantErr: "store.sqlite.path",
		},
		{
			name: "api key required when api enabled",
			mutate: func(c *Config) {
				c.HTTPAPI.Start = true
				c.HTTPAPI.APIKey = ""
			},
			wantErr: "http_api.api_key",
		},
		{
			name: "tls files required when tls enabled",
			mutate: func(c *Config) {
				c.HTTPAPI.Start = true
				c.HTTPAPI.APIKey = "k"
				c.HTTPAPI.TLS = true
			},
			wantErr: "tls_cert_file",
		},
		{
			name: "imap batch size must be positive",
			mutate: func(c *Config) {
				c.IMAP.Addr = "imap.example.com:993"
				c.IMAP.BatchSize = 0
			},
			wantErr: "imap.batch_size",
		},
		{
			name: "bad imap timeout",
			mutate: func(c *Config) {
				c.IMAP.Addr = "imap.example.com:993"
				c.IMAP.CommandTimeout = "soon"
			},
			wantErr: "imap.command_timeout",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
