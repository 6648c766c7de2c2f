package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "SERVER_PORT", "STORAGE", "MYSQL_DSN", "REDIS_ADDR", "REDIS_DB",
		"REDIS_PASSWORD", "JWT_SECRET", "TOKEN_TTL", "IDENTITY_CACHE_TTL", "BCRYPT_COST",
		"LOG_LEVEL", "RESET_DB", "SWAGGER_HOST", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StorageMySQL, cfg.Storage)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.IdentityCacheTTL)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_port: "9000"
storage: memory
redis_addr: cache:6379
token_ttl: 1h
log_level: debug
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_ADDR", "env-cache:6379")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("RESET_DB", "true")

	cfg, err := Load([]string{"--token-ttl", "15m", "-p", "9100"})
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.ServerPort, "flag beats file")
	assert.Equal(t, StorageMemory, cfg.Storage, "file beats default")
	assert.Equal(t, "env-cache:6379", cfg.RedisAddr, "env beats file")
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL, "flag beats env")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.ResetDB)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad int", env: map[string]string{"REDIS_DB": "zero"}},
		{name: "bad duration", env: map[string]string{"TOKEN_TTL": "forever"}},
		{name: "bad bool", env: map[string]string{"RESET_DB": "maybe"}},
		{name: "unknown storage", args: []string{"--storage", "mongo"}},
		{name: "empty secret", args: []string{"--jwt-secret", ""}},
		{name: "negative ttl", args: []string{"--identity-cache-ttl", "-1s"}},
		{name: "unknown flag", args: []string{"--nope"}},
		{name: "missing file", args: []string{"--config", "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}
