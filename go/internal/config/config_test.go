package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizlive/go/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "STORE", "LOG_LEVEL", "DEMO_CODE", "DEMO_HOST", "NATS_URL", "DB_NAME", "DATABASE_URL"} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quizlive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		env      map[string]string
		wantErr  bool
		validate func(t *testing.T, cfg config.Config)
	}{
		{
			name: "defaults",
			validate: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "8080", cfg.Port)
				assert.Equal(t, config.StoreMemory, cfg.Store)
				assert.Empty(t, cfg.Journal.URL)
				assert.Equal(t, time.Second, cfg.Session.TickInterval)
				assert.Equal(t, zerolog.InfoLevel, cfg.Level())
				assert.Contains(t, cfg.Listener.DatabaseURL, "/quizlive?")
			},
		},
		{
			name: "yaml file",
			yaml: `
port: "9090"
store: postgres
session:
  tick_interval: 500ms
  heartbeat_interval: 5s
  stale_threshold: 20s
gateway:
  connection:
    send_buffer_size: 64
`,
			validate: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "9090", cfg.Port)
				assert.Equal(t, config.StorePostgres, cfg.Store)
				assert.Equal(t, 500*time.Millisecond, cfg.Session.TickInterval)
				assert.Equal(t, 20*time.Second, cfg.Session.StaleThreshold)
				assert.Equal(t, 64, cfg.Gateway.ConnectionConfig.SendBufferSize)
				assert.Equal(t, int64(4096), cfg.Gateway.ConnectionConfig.MaxMessageSize)
			},
		},
		{
			name: "environment wins",
			yaml: "port: \"9090\"\n",
			env: map[string]string{
				"PORT":      "7070",
				"STORE":     "POSTGRES",
				"LOG_LEVEL": "debug",
				"NATS_URL":  "nats://nats:4222",
				"DEMO_CODE": "ABC123",
			},
			validate: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "7070", cfg.Port)
				assert.Equal(t, config.StorePostgres, cfg.Store)
				assert.Equal(t, zerolog.DebugLevel, cfg.Level())
				assert.Equal(t, "nats://nats:4222", cfg.Journal.URL)
				assert.Equal(t, "ABC123", cfg.DemoCode)
			},
		},
		{
			name:    "unknown store",
			env:     map[string]string{"STORE": "redis"},
			wantErr: true,
		},
		{
			name:    "bad log level",
			env:     map[string]string{"LOG_LEVEL": "loud"},
			wantErr: true,
		},
		{
			name: "stale threshold too short",
			yaml: `
session:
  heartbeat_interval: 10s
  stale_threshold: 15s
`,
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "session: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, tt.yaml)
			}

			cfg, err := config.Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
