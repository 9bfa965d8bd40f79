package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "STORE_BACKEND", "GOOGLE_CLOUD_PROJECT", "CREDENTIALS_FILE",
		"TASKS_COLLECTION", "COUNTDOWN_LOCALE", "TIME_ZONE", "LOG_LEVEL",
		"LOG_FORMAT", "LINE_CHANNEL_TOKEN", "LINE_CHANNEL_SECRET", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	// keep godotenv from finding a developer's .env
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadMemoryBackendDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "tasks", cfg.Collection)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.LineEnabled())
}

func TestLoadFirestoreNeedsProject(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_CLOUD_PROJECT")

	t.Setenv("GOOGLE_CLOUD_PROJECT", "todolist-dev")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendFirestore, cfg.StoreBackend)
	assert.Equal(t, "todolist-dev", cfg.ProjectID)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
store_backend: datastore
project_id: from-file
collection: chores
locale: id
time_zone: UTC
shutdown_timeout: 5s
`), 0o600))
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, BackendDatastore, cfg.StoreBackend)
	assert.Equal(t, "from-file", cfg.ProjectID)
	assert.Equal(t, "chores", cfg.Collection)
	assert.Equal(t, "id", cfg.Locale)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }, "unknown store backend"},
		{"unknown locale", func(c *Config) { c.Locale = "fr" }, "unknown locale"},
		{"bad zone", func(c *Config) { c.TimeZone = "Mars/Olympus" }, "invalid time zone"},
		{"half LINE", func(c *Config) { c.LineChannelToken = "tok" }, "LINE_CHANNEL_TOKEN"},
		{"zero timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.StoreBackend = BackendMemory
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInvalidShutdownTimeoutEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	_, err := Load("")
	assert.ErrorContains(t, err, "SHUTDOWN_TIMEOUT")
}
