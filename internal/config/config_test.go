package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.TierCommunity, cfg.Tier)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Repository.Driver)
	assert.Equal(t, "./harrier.db", cfg.Repository.SQLitePath)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "channel", cfg.EventBus.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 25, cfg.Repository.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Repository.ConnMaxLifetime)
}

func TestLoadProTier(t *testing.T) {
	t.Setenv("HARRIER_TIER", "pro")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.TierPro, cfg.Tier)
	assert.Equal(t, "postgres", cfg.Repository.Driver)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.True(t, cfg.Cache.EnableTwoPhase)
	assert.Equal(t, "nats", cfg.EventBus.Type)
	assert.Equal(t, "nats://localhost:4222", cfg.EventBus.NATSUrl)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARRIER_SERVER_PORT", "9090")
	t.Setenv("HARRIER_REPOSITORY_SQLITE_PATH", "/tmp/other.db")
	t.Setenv("HARRIER_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/other.db", cfg.Repository.SQLitePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "sqlite", cfg.Repository.Driver)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harrier.yaml")
	yaml := `
server:
  port: 7070
repository:
  driver: sqlite
  sqlite_path: /tmp/file.db
cache:
  local_max_size: 500
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/file.db", cfg.Repository.SQLitePath)
	assert.Equal(t, 500, cfg.Cache.LocalMaxSize)
	assert.Equal(t, domain.TierCommunity, cfg.Tier)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harrier.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))

	t.Setenv("HARRIER_SERVER_PORT", "6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load("/nonexistent/harrier.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad driver", "HARRIER_REPOSITORY_DRIVER", "oracle"},
		{"bad cache", "HARRIER_CACHE_TYPE", "memcached"},
		{"bad bus", "HARRIER_EVENTBUS_TYPE", "kafka"},
		{"bad port", "HARRIER_SERVER_PORT", "99999"},
		{"bad tier", "HARRIER_TIER", "enterprise"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
