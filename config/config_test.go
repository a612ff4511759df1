package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-auth-sync/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.Defaults().IdentityServiceURL, cfg.IdentityServiceURL)
	assert.Equal(t, config.StoreFile, cfg.StoreDriver)
	assert.Equal(t, "users", cfg.Collection)
	assert.NoError(t, cfg.ValidateClient())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "authsync.yaml", `
identity_service_url: https://id.example.com
collection: members
store_driver: memory
request_timeout: 5s
signing_key: yaml-signing-key-0123456789
audience:
  - web
  - cli
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://id.example.com", cfg.IdentityServiceURL)
	assert.Equal(t, "members", cfg.Collection)
	assert.Equal(t, config.StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"web", "cli"}, cfg.GetAudience())
	assert.Equal(t, "yaml-signing-key-0123456789", cfg.GetSigningKey())

	// untouched keys keep their defaults
	assert.Equal(t, 24, cfg.GetTokenExpiration())
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "authsync.toml", `
listen_addr = ":9000"
database_dsn = "file:test.db"
signing_key = "toml-signing-key-0123456789"
token_expiration = 2
issuer = "tests"
use_hashid = true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "file:test.db", cfg.DatabaseDSN)
	assert.Equal(t, 2, cfg.GetTokenExpiration())
	assert.Equal(t, "tests", cfg.GetIssuer())
	assert.True(t, cfg.UseHashid)
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "authsync.yaml", "store_driver: file\nrate_limit: 3\n")

	t.Setenv("AUTHSYNC_STORE_DRIVER", "sqlite")
	t.Setenv("AUTHSYNC_AUDIENCE", "a,b")
	t.Setenv("AUTHSYNC_REQUEST_TIMEOUT", "250ms")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, []string{"a", "b"}, cfg.Audience)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.RateLimit)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "authsync.ini", "a=b"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "authsync.toml", "listen_addr = "))
		assert.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("AUTHSYNC_HASH_COST", "lots")
		_, err := config.Load("")
		assert.Error(t, err)
	})
}

func TestConfig_ValidateClient(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"bad url", func(c *config.Config) { c.IdentityServiceURL = "not a url" }, "IdentityServiceURL"},
		{"unknown driver", func(c *config.Config) { c.StoreDriver = "redis" }, "StoreDriver"},
		{"file store without path", func(c *config.Config) { c.StorePath = "" }, "StorePath"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)

			err := cfg.ValidateClient()
			require.Error(t, err)

			errs, ok := err.(validation.Errors)
			require.True(t, ok)
			assert.Contains(t, errs, tt.field)
		})
	}

	t.Run("memory store needs no path", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.StoreDriver = config.StoreMemory
		cfg.StorePath = ""
		assert.NoError(t, cfg.ValidateClient())
	})
}

func TestConfig_ValidateServer(t *testing.T) {
	cfg := config.Defaults()
	err := cfg.ValidateServer()
	require.Error(t, err)

	errs, ok := err.(validation.Errors)
	require.True(t, ok)
	assert.Contains(t, errs, "SigningKey")

	cfg.SigningKey = "short"
	assert.Error(t, cfg.ValidateServer())

	cfg.SigningKey = "long-enough-signing-key"
	assert.NoError(t, cfg.ValidateServer())
}
