package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "WRITE_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
		"DATABASE_URL", "DATABASE_INSECURE_TLS",
		"HLS_BASE_URL", "BROWSER_PATH", "RENDER", "NAV_TIMEOUT", "SETTLE_DELAY",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultDBPath(t *testing.T) {
	t.Run("with XDG_CACHE_HOME", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "/custom/cache")
		assert.Equal(t, "/custom/cache/streamcatcher/videos.db", DefaultDBPath())
	})

	t.Run("without XDG_CACHE_HOME", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "")
		path := DefaultDBPath()
		assert.True(t, strings.HasSuffix(path, filepath.Join(".cache", "streamcatcher", "videos.db")), path)
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "text", cfg.Server.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.Scraper.NavTimeout)
	assert.Equal(t, 15*time.Second, cfg.Scraper.SettleDelay)
	assert.False(t, cfg.Scraper.Hosted)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, BackendSQLite, cfg.Backend())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	path := writeConfig(t, `
[server]
port = 8080
write_timeout = "2m"
log_format = "json"

[database]
url = "postgres://app:${TEST_DB_PASSWORD}@db:5432/videos"
insecure_tls = true

[scraper]
base_url = "https://player.example.com"
nav_timeout = "45s"
settle_delay = "5s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, "info", cfg.Server.LogLevel, "unset keys keep defaults")
	assert.Equal(t, "postgres://app:s3cret@db:5432/videos", cfg.Database.URL)
	assert.True(t, cfg.Database.InsecureTLS)
	assert.Equal(t, "https://player.example.com", cfg.Scraper.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Scraper.NavTimeout)
	assert.Equal(t, 5*time.Second, cfg.Scraper.SettleDelay)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[server]
port = 8080

[scraper]
base_url = "https://file.example.com"
`)
	t.Setenv("PORT", "9090")
	t.Setenv("HLS_BASE_URL", "https://env.example.com")
	t.Setenv("BROWSER_PATH", "/opt/chrome")
	t.Setenv("RENDER", "true")
	t.Setenv("NAV_TIMEOUT", "10s")
	t.Setenv("SETTLE_DELAY", "3s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "/tmp/videos.db")
	t.Setenv("DATABASE_INSECURE_TLS", "1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://env.example.com", cfg.Scraper.BaseURL)
	assert.Equal(t, "/opt/chrome", cfg.Scraper.BrowserPath)
	assert.True(t, cfg.Scraper.Hosted)
	assert.Equal(t, 10*time.Second, cfg.Scraper.NavTimeout)
	assert.Equal(t, 3*time.Second, cfg.Scraper.SettleDelay)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/tmp/videos.db", cfg.Database.URL)
	assert.True(t, cfg.Database.InsecureTLS)
}

func TestLoad_UnresolvedVariableKept(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[scraper]
base_url = "${STREAMCATCHER_UNSET_VAR}"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${STREAMCATCHER_UNSET_VAR}", cfg.Scraper.BaseURL)
	assert.Error(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "reading config")

	_, err = Load(writeConfig(t, "[server\nport ="))
	assert.ErrorContains(t, err, "parsing config")
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", false, false},
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"false", true, false},
		{"0", true, false},
		{"yes", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("STREAMCATCHER_TEST_BOOL", tt.value)
			assert.Equal(t, tt.want, envBool("STREAMCATCHER_TEST_BOOL", tt.def))
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Scraper.BaseURL = "https://player.example.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing base url", func(c *Config) { c.Scraper.BaseURL = "" }, "base_url"},
		{"relative base url", func(c *Config) { c.Scraper.BaseURL = "player.example.com" }, "absolute"},
		{"ftp base url", func(c *Config) { c.Scraper.BaseURL = "ftp://player.example.com" }, "absolute"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero nav timeout", func(c *Config) { c.Scraper.NavTimeout = 0 }, "nav_timeout"},
		{"negative settle", func(c *Config) { c.Scraper.SettleDelay = -time.Second }, "settle_delay"},
		{"zero write timeout", func(c *Config) { c.Server.WriteTimeout = 0 }, "write_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBackend(t *testing.T) {
	tests := []struct {
		url  string
		want Backend
	}{
		{"", BackendSQLite},
		{"postgres://u:p@host/db", BackendPostgres},
		{"postgresql://u:p@host/db", BackendPostgres},
		{"POSTGRES://u:p@host/db", BackendPostgres},
		{"sqlite:///var/lib/videos.db", BackendSQLite},
		{"/var/lib/videos.db", BackendSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := &Config{Database: DatabaseConfig{URL: tt.url}}
			assert.Equal(t, tt.want, cfg.Backend())
		})
	}
}

func TestSQLitePath(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	home, _ := os.UserHomeDir()

	tests := []struct {
		url  string
		want string
	}{
		{"", "/custom/cache/streamcatcher/videos.db"},
		{"sqlite://", "/custom/cache/streamcatcher/videos.db"},
		{"sqlite:///var/lib/videos.db", "/var/lib/videos.db"},
		{"/var/lib/videos.db", "/var/lib/videos.db"},
		{"~/videos.db", filepath.Join(home, "videos.db")},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := &Config{Database: DatabaseConfig{URL: tt.url}}
			assert.Equal(t, tt.want, cfg.SQLitePath())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log, err := ServerConfig{LogLevel: "warn", LogFormat: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = ServerConfig{LogLevel: "loud"}.NewLogger(&buf)
	assert.Error(t, err)
}
