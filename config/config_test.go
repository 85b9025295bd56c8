package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":10086", cfg.Server.Addr)
	assert.Equal(t, "onnx", cfg.Model.Backend)
	assert.Equal(t, 1024, cfg.Model.InputSize)
	assert.Equal(t, 1, cfg.Model.Sessions)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "@every 10m", cfg.Cache.SweepSpec)
}

func TestLoadYAML(t *testing.T) {
	p := writeTempFile(t, "config.yaml", `
server:
  addr: ":9999"
  mode: release
model:
  backend: remote
  remote_url: http://10.0.0.2:8188/segment
  sessions: 4
mask:
  foreground_threshold: 127
cache:
  backend: redis
  ttl: 1h
redis:
  addr: redis:6379
  db: 3
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "remote", cfg.Model.Backend)
	assert.Equal(t, "http://10.0.0.2:8188/segment", cfg.Model.RemoteURL)
	assert.Equal(t, 4, cfg.Model.Sessions)
	assert.Equal(t, uint8(127), cfg.Mask.ForegroundThreshold)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	// 未设置的值保持默认
	assert.Equal(t, 1024, cfg.Model.InputSize)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	p := writeTempFile(t, "bad.yaml", "model:\n  backend: tensorflow\n")
	_, err = Load(p)
	assert.ErrorContains(t, err, "unknown model backend")

	p = writeTempFile(t, "bad_cache.yaml", "cache:\n  backend: memcached\n")
	_, err = Load(p)
	assert.ErrorContains(t, err, "unknown cache backend")
}

func TestNewFallsBackToDefaults(t *testing.T) {
	cfg, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":10086", cfg.Server.Addr)
}

func TestNewRejectsInvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "会话数为 0",
			content: "server:\n  addr: \":9999\"\nmodel:\n  backend: remote\n  sessions: 0\n",
			wantErr: "model.sessions must be positive",
		},
		{
			name:    "未知后端",
			content: "model:\n  backend: tensorflow\n",
			wantErr: "unknown model backend",
		},
		{
			name:    "YAML 格式错误",
			content: "server: [addr\n",
			wantErr: "failed to read config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := New(writeTempFile(t, "config.yaml", tt.content))
			assert.Nil(t, cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("REMOVEBG_SERVER_ADDR", ":7070")
	t.Setenv("REMOVEBG_MODEL_SESSIONS", "2")

	cfg, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Model.Sessions)
}
