package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, time.Second, cfg.Store.ReconnectDelay)
	assert.Equal(t, 5, cfg.Store.SnapshotRetention)
	assert.Equal(t, 5000, cfg.HTTP.Port)
	assert.Equal(t, DefaultAdminPasscode, cfg.Auth.AdminPasscode)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unisemi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
STORE_BACKEND: redis
STORE_RECONNECT_DELAY: 250ms
HTTP_PORT: 8081
HTTP_ALLOWED_ORIGINS:
  - https://a.example
  - https://b.example
`), 0o600))

	t.Setenv("STORE_BACKEND", "")
	t.Setenv("STORE_RECONNECT_DELAY", "")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.ReconnectDelay)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("postgres needs url", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", BackendPostgres)
		t.Setenv("DATABASE_URL", "")
		t.Setenv("DB_HOST", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "hbase")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("retention floor", func(t *testing.T) {
		t.Setenv("STORE_SNAPSHOT_RETENTION", "3")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("production rejects defaults", func(t *testing.T) {
		t.Setenv("APP_ENV", string(EnvProduction))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory is not allowed")
		assert.Contains(t, err.Error(), "default ADMIN_PASSCODE")
	})
}
