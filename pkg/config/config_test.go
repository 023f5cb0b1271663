package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Search.DefaultLimit)
	assert.Equal(t, CatalogSourcePostgres, cfg.Catalog.Source)
	assert.Equal(t, 60*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "catalog-updated", cfg.Kafka.Topics.CatalogUpdated)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
catalog:
  source: file
  filePath: /data/channels.json
  refreshInterval: 2m
search:
  defaultLimit: 20
  maxResults: 100
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, CatalogSourceFile, cfg.Catalog.Source)
	assert.Equal(t, "/data/channels.json", cfg.Catalog.FilePath)
	assert.Equal(t, 2*time.Minute, cfg.Catalog.RefreshInterval)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr, "unset values keep defaults")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CS_SERVER_PORT", "7070")
	t.Setenv("CS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CS_KAFKA_ENABLED", "false")
	t.Setenv("CS_REDIS_CACHE_TTL", "5s")
	t.Setenv("CS_CATALOG_SOURCE", "file")
	t.Setenv("CS_CATALOG_FILE", "channels.json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "channels.json", cfg.Catalog.FilePath)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"unknown source":    "catalog:\n  source: s3\n",
		"file without path": "catalog:\n  source: file\n",
		"limits":            "search:\n  defaultLimit: 100\n  maxResults: 10\n",
		"rate limit":        "rateLimit:\n  enabled: true\n  requests: 0\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", p.DSN())
}
