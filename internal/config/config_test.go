package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"VIGIL_ADDR", "DATABASE_TYPE", "DATABASE_URL", "VIGIL_MIGRATIONS_DIR", "JWT_SECRET",
	"TOKEN_TTL", "SITE_URL", "EMAIL_PROVIDER", "RESEND_API_KEY", "EMAIL_FROM", "EMAIL_API_URL", "EMAIL_BLOCKED_DOMAINS", "EMAIL_CONSUMER_DOMAINS",
	"ADVANCED_POLICY", "CORS_ORIGINS", "WELCOME_WINDOW", "WELCOME_DEDUP", "LOG_LEVEL", "LOG_DEV",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, devJWTSecret, cfg.JWTSecretOrDev())

	cfg.Log.Development = true
	assert.NoError(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
site_url: https://vigil.example.com
database:
  type: sqlite
  url: /var/lib/vigil/vigil.db
auth:
  jwt_secret: from-file
  token_ttl: 12h
welcome:
  window: 1h
email:
  consumer_domains: [isp.example]
`), 0o600))
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("ADVANCED_POLICY", "premium")
	t.Setenv("WELCOME_DEDUP", "STORE")
	t.Setenv("LOG_DEV", "true")
	t.Setenv("CORS_ORIGINS", "https://app.vigil.io, https://admin.vigil.io,")
	t.Setenv("EMAIL_BLOCKED_DOMAINS", "burner.test,trash.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, time.Hour, cfg.Welcome.Window)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "premium", cfg.AdvancedPolicy)
	assert.Equal(t, "store", cfg.Welcome.Dedup)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, []string{"https://app.vigil.io", "https://admin.vigil.io"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"burner.test", "trash.example"}, cfg.Email.BlockedDomains)
	assert.Equal(t, []string{"isp.example"}, cfg.Email.ConsumerDomains)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown database":   func(c *Config) { c.Database.Type = "mongo" },
		"sqlite without url": func(c *Config) { c.Database.Type = "sqlite" },
		"missing secret":     func(c *Config) { c.Auth.JWTSecret = ""; c.Log.Development = false },
		"bad site url":       func(c *Config) { c.SiteURL = "localhost" },
		"bad policy":         func(c *Config) { c.AdvancedPolicy = "gold" },
		"resend without key": func(c *Config) { c.Email.Provider = "resend" },
		"unknown provider":   func(c *Config) { c.Email.Provider = "smtp" },
		"bad dedup":          func(c *Config) { c.Welcome.Dedup = "redis" },
		"zero window":        func(c *Config) { c.Welcome.Window = 0 },
		"bad level":          func(c *Config) { c.Log.Level = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = "s"
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Auth.JWTSecret = "s"
	cfg.Email = EmailConfig{Provider: "resend", APIKey: "re_123", From: "Vigil <hi@vigil.io>"}
	assert.NoError(t, cfg.Validate())
}
