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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFile(writeConfig(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "serial", cfg.Link.Type)
	assert.Equal(t, 115200, cfg.Link.Serial.BaudRate)
	assert.Equal(t, 2*time.Millisecond, cfg.Session.PollInterval)
	assert.Equal(t, "::::::::::::::::::::", cfg.Session.StartupTerminator)
	assert.Equal(t, []string{"detailed on", "echo off", "mode both"}, cfg.Session.SetupCommands)
	assert.Equal(t, 6000, cfg.Session.MaxParsePolls)
	assert.Equal(t, "default", cfg.Session.ConfirmPolicy)
	assert.Equal(t, "0.0.0.0:8084", cfg.GetServerAddr())
	assert.False(t, cfg.IsDebugEnabled())
}

func TestLoadFileOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFile(writeConfig(t, `
app:
  environment: production
link:
  type: tcp
  tcp:
    host: bridge.local
    port: 3001
session:
  poll_interval: 5ms
  confirm_policy: "no"
  max_parse_polls: 0
`))
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Link.Type)
	assert.Equal(t, "bridge.local", cfg.Link.TCP.Host)
	assert.Equal(t, 3001, cfg.Link.TCP.Port)
	assert.Equal(t, 5*time.Millisecond, cfg.Session.PollInterval)
	assert.Equal(t, "no", cfg.Session.ConfirmPolicy)
	assert.Equal(t, 0, cfg.Session.MaxParsePolls)
	assert.True(t, cfg.IsProduction())
}

func TestLoadFileValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad environment", "app:\n  environment: moon\n", "app.environment"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad link type", "link:\n  type: usb\n", "link.type"},
		{"bad tcp port", "link:\n  type: tcp\n  tcp:\n    port: 70000\n", "link.tcp.port"},
		{"bad poll interval", "session:\n  poll_interval: 0s\n", "session.poll_interval"},
		{"bad policy", "session:\n  confirm_policy: maybe\n", "session.confirm_policy"},
		{"negative parse polls", "session:\n  max_parse_polls: -1\n", "session.max_parse_polls"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
