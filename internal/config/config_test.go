package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFile(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30, cfg.DanmakuHistory)
	assert.Equal(t, 600*time.Second, cfg.Captcha.Expiry)
	assert.Equal(t, 60*time.Second, cfg.Captcha.Cooldown)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "drop", cfg.SlowConsumer)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
}

func TestFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := `
mode: debug
port: 9000
danmaku_history: 10
danmaku_rate:
  limit: 2
  interval: 1s
live:
  push_key: pk
ice_servers:
  - urls: ["turn:turn.example.org:3478"]
    username: u
    credential: p
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("DANMAKU_ADMIN_PASSWORD", "root")

	cfg, err := LoadFile(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 10, cfg.DanmakuHistory)
	assert.Equal(t, RateLimit{Limit: 2, Interval: time.Second}, cfg.DanmakuRate)
	assert.Equal(t, "pk", cfg.Live.PushKey)
	assert.Equal(t, "root", cfg.AdminPassword)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, "u", cfg.ICEServers[0].Username)
}

func TestFileFor(t *testing.T) {
	assert.Equal(t, "config/config.dev.yaml", FileFor(""))
	assert.Equal(t, "config/config.prod.yaml", FileFor("prod"))
}
