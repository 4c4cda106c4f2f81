// Package config assembles server settings from defaults, an optional YAML
// file, a .env file and the environment. Flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/Vigil/internal/logging"
	"github.com/soaringjerry/Vigil/internal/services"
	"github.com/soaringjerry/Vigil/internal/utils"
)

const devJWTSecret = "vigil-dev-secret"

type Config struct {
	Addr           string         `yaml:"addr"`
	SiteURL        string         `yaml:"site_url"`
	AdvancedPolicy string         `yaml:"advanced_policy"`
	CORSOrigins    []string       `yaml:"cors_origins"`
	Database       DatabaseConfig `yaml:"database"`
	Auth           AuthConfig     `yaml:"auth"`
	Email          EmailConfig    `yaml:"email"`
	Welcome        WelcomeConfig  `yaml:"welcome"`
	Log            LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Type          string `yaml:"type"` // memory, sqlite, postgres
	URL           string `yaml:"url"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type EmailConfig struct {
	Provider string `yaml:"provider"` // log, resend
	APIKey   string `yaml:"api_key"`
	From     string `yaml:"from"`
	APIURL   string `yaml:"api_url"`
	// Extra domains refused for guest submissions, on top of the built-in lists.
	BlockedDomains  []string `yaml:"blocked_domains"`
	ConsumerDomains []string `yaml:"consumer_domains"`
}

type WelcomeConfig struct {
	Window time.Duration `yaml:"window"`
	Dedup  string        `yaml:"dedup"` // memory, store
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Addr:           ":8080",
		SiteURL:        "http://localhost:8080",
		AdvancedPolicy: "all",
		Database:       DatabaseConfig{Type: "memory"},
		Auth:           AuthConfig{TokenTTL: 30 * 24 * time.Hour},
		Email:          EmailConfig{Provider: "log", From: "Vigil <no-reply@vigil.local>"},
		Welcome:        WelcomeConfig{Window: services.DefaultWelcomeWindow, Dedup: "memory"},
		Log:            LogConfig{Level: "info"},
	}
}

// Load reads path (skipped when empty), then .env, then the environment.
// A missing .env is not an error; a missing explicit config file is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = utils.SafeEnv("VIGIL_ADDR", c.Addr)
	c.Database.Type = strings.ToLower(utils.SafeEnv("DATABASE_TYPE", c.Database.Type))
	c.Database.URL = utils.SafeEnv("DATABASE_URL", c.Database.URL)
	c.Database.MigrationsDir = utils.SafeEnv("VIGIL_MIGRATIONS_DIR", c.Database.MigrationsDir)
	c.Auth.JWTSecret = utils.SafeEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = utils.EnvDuration("TOKEN_TTL", c.Auth.TokenTTL)
	c.SiteURL = utils.SafeEnv("SITE_URL", c.SiteURL)
	c.Email.Provider = strings.ToLower(utils.SafeEnv("EMAIL_PROVIDER", c.Email.Provider))
	c.Email.APIKey = utils.SafeEnv("RESEND_API_KEY", c.Email.APIKey)
	c.Email.From = utils.SafeEnv("EMAIL_FROM", c.Email.From)
	c.Email.APIURL = utils.SafeEnv("EMAIL_API_URL", c.Email.APIURL)
	if v := utils.SafeEnv("EMAIL_BLOCKED_DOMAINS", ""); v != "" {
		c.Email.BlockedDomains = splitList(v)
	}
	if v := utils.SafeEnv("EMAIL_CONSUMER_DOMAINS", ""); v != "" {
		c.Email.ConsumerDomains = splitList(v)
	}
	c.AdvancedPolicy = utils.SafeEnv("ADVANCED_POLICY", c.AdvancedPolicy)
	if v := utils.SafeEnv("CORS_ORIGINS", ""); v != "" {
		c.CORSOrigins = splitList(v)
	}
	c.Welcome.Window = utils.EnvDuration("WELCOME_WINDOW", c.Welcome.Window)
	c.Welcome.Dedup = strings.ToLower(utils.SafeEnv("WELCOME_DEDUP", c.Welcome.Dedup))
	c.Log.Level = utils.SafeEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Development = utils.EnvBool("LOG_DEV", c.Log.Development)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JWTSecretOrDev returns the configured secret, falling back to a fixed
// development secret. Validate refuses the fallback outside development.
func (c *Config) JWTSecretOrDev() string {
	if c.Auth.JWTSecret == "" {
		return devJWTSecret
	}
	return c.Auth.JWTSecret
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Type {
	case "memory":
	case "sqlite", "postgres":
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for %s", c.Database.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database type %q (valid: memory, sqlite, postgres)", c.Database.Type))
	}
	if c.Auth.JWTSecret == "" && !c.Log.Development {
		errs = append(errs, errors.New("JWT_SECRET is required outside development (set LOG_DEV=true for local runs)"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if u, err := url.Parse(c.SiteURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid site url %q", c.SiteURL))
	}
	if _, ok := services.ParseAdvancedPolicy(c.AdvancedPolicy); !ok {
		errs = append(errs, fmt.Errorf("unknown advanced policy %q (valid: all, premium)", c.AdvancedPolicy))
	}
	switch c.Email.Provider {
	case "log":
	case "resend":
		if c.Email.APIKey == "" || c.Email.From == "" {
			errs = append(errs, errors.New("resend needs RESEND_API_KEY and EMAIL_FROM"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown email provider %q (valid: log, resend)", c.Email.Provider))
	}
	switch c.Welcome.Dedup {
	case "memory", "store":
	default:
		errs = append(errs, fmt.Errorf("unknown welcome dedup %q (valid: memory, store)", c.Welcome.Dedup))
	}
	if c.Welcome.Window <= 0 {
		errs = append(errs, errors.New("welcome window must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
