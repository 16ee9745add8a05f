package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 45*time.Second, cfg.RingTimeout)
	require.Equal(t, 20, cfg.RateLimit.Burst)
	require.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers)
	require.Empty(t, cfg.Database.DSN)
	require.Equal(t, "close", cfg.Backpressure)
	require.Equal(t, "all", cfg.ICETransportPolicy)
	require.Equal(t, 60*time.Second, cfg.PongWait())
}

func TestLoadFileOverridesAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	body := []byte("port: 9090\nring_timeout: 5s\nrate_limit:\n  burst: 3\n  interval: 2s\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("PARLEY_DATABASE_DSN", "postgres://x")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5*time.Second, cfg.RingTimeout)
	require.Equal(t, 3, cfg.RateLimit.Burst)
	require.Equal(t, 2*time.Second, cfg.RateLimit.Interval)
	require.Equal(t, "postgres://x", cfg.Database.DSN)
}

func TestLoadFileRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 0\nsend_buffer: 0\nbackpressure: maybe\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "port out of range")
	require.Contains(t, err.Error(), "send_buffer")
	require.Contains(t, err.Error(), "backpressure")
}
