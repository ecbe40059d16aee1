// Package config loads service configuration from an optional TOML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/anatolykoptev/go-kit/env"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Scraper  ScraperConfig  `toml:"scraper"`
}

type ServerConfig struct {
	Port         int           `toml:"port"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	LogLevel     string        `toml:"log_level"`
	LogFormat    string        `toml:"log_format"`
}

type DatabaseConfig struct {
	// URL is a postgres:// connection string or a SQLite path.
	URL         string `toml:"url"`
	InsecureTLS bool   `toml:"insecure_tls"`
}

type ScraperConfig struct {
	BaseURL     string        `toml:"base_url"`
	BrowserPath string        `toml:"browser_path"`
	Hosted      bool          `toml:"hosted"`
	NavTimeout  time.Duration `toml:"nav_timeout"`
	SettleDelay time.Duration `toml:"settle_delay"`
}

// Backend identifies the store implementation selected by Database.URL.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// DefaultDBPath returns the default SQLite path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "streamcatcher", "videos.db")
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			WriteTimeout: 90 * time.Second,
			LogLevel:     "info",
			LogFormat:    "text",
		},
		Scraper: ScraperConfig{
			NavTimeout:  30 * time.Second,
			SettleDelay: 15 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// non-empty) and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if _, err := toml.Decode(substituteEnvVars(string(data)), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = env.Int("PORT", c.Server.Port)
	c.Server.WriteTimeout = env.Duration("WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.LogLevel = env.Str("LOG_LEVEL", c.Server.LogLevel)
	c.Server.LogFormat = env.Str("LOG_FORMAT", c.Server.LogFormat)

	c.Database.URL = env.Str("DATABASE_URL", c.Database.URL)
	c.Database.InsecureTLS = envBool("DATABASE_INSECURE_TLS", c.Database.InsecureTLS)

	c.Scraper.BaseURL = env.Str("HLS_BASE_URL", c.Scraper.BaseURL)
	c.Scraper.BrowserPath = env.Str("BROWSER_PATH", c.Scraper.BrowserPath)
	c.Scraper.Hosted = envBool("RENDER", c.Scraper.Hosted)
	c.Scraper.NavTimeout = env.Duration("NAV_TIMEOUT", c.Scraper.NavTimeout)
	c.Scraper.SettleDelay = env.Duration("SETTLE_DELAY", c.Scraper.SettleDelay)
}

// envBool treats any non-empty value other than a false literal as true.
func envBool(key string, def bool) bool {
	v := strings.TrimSpace(env.Str(key, ""))
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return true
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	if c.Scraper.NavTimeout <= 0 {
		errs = append(errs, errors.New("scraper.nav_timeout must be positive"))
	}
	if c.Scraper.SettleDelay <= 0 {
		errs = append(errs, errors.New("scraper.settle_delay must be positive"))
	}
	if err := validateBaseURL(c.Scraper.BaseURL); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("scraper.base_url (HLS_BASE_URL) is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("scraper.base_url %q must be an absolute http(s) URL", raw)
	}
	return nil
}

// Backend reports which store Database.URL selects.
func (c *Config) Backend() Backend {
	u := strings.ToLower(c.Database.URL)
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return BackendPostgres
	}
	return BackendSQLite
}

// SQLitePath returns the SQLite file path for the SQLite backend.
func (c *Config) SQLitePath() string {
	p := strings.TrimPrefix(c.Database.URL, "sqlite://")
	if p == "" {
		return DefaultDBPath()
	}
	return ExpandPath(p)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}
