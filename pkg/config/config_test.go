package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
service_name = "coinboard-test"
environment = "staging"

[http]
port = 9090

[database]
driver = "sqlite"
dsn = "test.db"

[scraper]
source = "coinmarketcap"
endpoint = "https://pro-api.coinmarketcap.com"
api_key = "secret"
limit = 20
timeout = 5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "coinboard-test", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr())
	assert.Equal(t, "coinmarketcap", cfg.Scraper.Source)
	assert.Equal(t, 20, cfg.Scraper.Limit)
	assert.Equal(t, 5*time.Second, cfg.Scraper.TimeoutDuration())
	// 未出现在文件中的键取默认值
	assert.Equal(t, "usd", cfg.Scraper.Currency)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APP_SCRAPER_LIMIT", "25")
	t.Setenv("APP_DATABASE_DSN", "override.db")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Scraper.Limit)
	assert.Equal(t, "override.db", cfg.Database.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoadWithDefaultsMissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "coinboard", cfg.ServiceName)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "database.db", cfg.Database.DSN)
	assert.Equal(t, "coingecko", cfg.Scraper.Source)
	assert.Equal(t, 100, cfg.Scraper.Limit)
	assert.Equal(t, "market_cap_desc", cfg.Scraper.Order)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadWithDefaults("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"unknown timezone", func(c *Config) { c.HTTP.Timezone = "Mars/Olympus" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"unknown source", func(c *Config) { c.Scraper.Source = "binance" }},
		{"cmc without key", func(c *Config) { c.Scraper.Source = "coinmarketcap"; c.Scraper.APIKey = "" }},
		{"zero limit", func(c *Config) { c.Scraper.Limit = 0 }},
		{"zero timeout", func(c *Config) { c.Scraper.Timeout = 0 }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestHTTPLocation(t *testing.T) {
	assert.Equal(t, time.UTC, HTTPConfig{Timezone: "UTC"}.Location())
	assert.Equal(t, time.UTC, HTTPConfig{Timezone: "Mars/Olympus"}.Location())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("COINBOARD_DOTENV_CHECK=loaded\n"), 0o600))
	t.Setenv("COINBOARD_DOTENV_CHECK", "")
	os.Unsetenv("COINBOARD_DOTENV_CHECK")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("COINBOARD_DOTENV_CHECK"))

	// 不存在的文件被忽略
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "nope.env")))
}
