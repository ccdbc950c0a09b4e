package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every RUNPANEL_ env var that Load() reads.
var allConfigKeys = []string{
	"RUNPANEL_LISTEN_ADDR",
	"RUNPANEL_DB_PATH",
	"RUNPANEL_POLL_INTERVAL",
	"RUNPANEL_STALE_AFTER",
	"RUNPANEL_SECRET_KEY",
	"RUNPANEL_DEFAULT_RUN_RETENTION",
	"RUNPANEL_INCREMENTAL_FETCH_COUNT",
	"RUNPANEL_FETCH_CONCURRENCY",
	"RUNPANEL_LOG_LEVEL",
}

// isolateConfigEnv saves and unsets all RUNPANEL_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("RUNPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("RUNPANEL_DB_PATH", "/tmp/test.db")
	t.Setenv("RUNPANEL_POLL_INTERVAL", "10s")
	t.Setenv("RUNPANEL_STALE_AFTER", "2m")
	t.Setenv("RUNPANEL_DEFAULT_RUN_RETENTION", "750")
	t.Setenv("RUNPANEL_INCREMENTAL_FETCH_COUNT", "25")
	t.Setenv("RUNPANEL_FETCH_CONCURRENCY", "8")
	t.Setenv("RUNPANEL_LOG_LEVEL", "debug")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 750, cfg.DefaultRunRetention)
	assert.Equal(t, 25, cfg.IncrementalFetchCount)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "runpanel.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 500, cfg.DefaultRunRetention)
	assert.Equal(t, 10, cfg.IncrementalFetchCount)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Nil(t, cfg.SecretKey)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "poll interval not a duration", key: "RUNPANEL_POLL_INTERVAL", value: "often", wantErr: "RUNPANEL_POLL_INTERVAL"},
		{name: "poll interval zero", key: "RUNPANEL_POLL_INTERVAL", value: "0s", wantErr: "must be positive"},
		{name: "stale after negative", key: "RUNPANEL_STALE_AFTER", value: "-1m", wantErr: "RUNPANEL_STALE_AFTER"},
		{name: "retention below range", key: "RUNPANEL_DEFAULT_RUN_RETENTION", value: "199", wantErr: "between 200 and 1000"},
		{name: "retention above range", key: "RUNPANEL_DEFAULT_RUN_RETENTION", value: "1001", wantErr: "between 200 and 1000"},
		{name: "retention not a number", key: "RUNPANEL_DEFAULT_RUN_RETENTION", value: "lots", wantErr: "RUNPANEL_DEFAULT_RUN_RETENTION"},
		{name: "fetch count zero", key: "RUNPANEL_INCREMENTAL_FETCH_COUNT", value: "0", wantErr: "must be positive"},
		{name: "concurrency negative", key: "RUNPANEL_FETCH_CONCURRENCY", value: "-2", wantErr: "must be positive"},
		{name: "unknown log level", key: "RUNPANEL_LOG_LEVEL", value: "chatty", wantErr: "RUNPANEL_LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_SecretKey_Valid(t *testing.T) {
	isolateConfigEnv(t)
	// 64 hex chars = 32 bytes
	t.Setenv("RUNPANEL_SECRET_KEY", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.SecretKey, 32)
}

func TestLoad_SecretKey_Empty(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("RUNPANEL_SECRET_KEY", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Nil(t, cfg.SecretKey)
}

func TestLoad_SecretKey_TooShort(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("RUNPANEL_SECRET_KEY", "deadbeef")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUNPANEL_SECRET_KEY")
}

func TestLoad_SecretKey_NotHex(t *testing.T) {
	isolateConfigEnv(t)
	// 64 chars but not valid hex
	t.Setenv("RUNPANEL_SECRET_KEY", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUNPANEL_SECRET_KEY")
}
