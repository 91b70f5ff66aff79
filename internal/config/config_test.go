package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8317, cfg.Server.Port)
	assert.Equal(t, "claude", cfg.Agent.Binary)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Storage.Path)
	assert.NotEmpty(t, cfg.Retention.Schedule)
}

func TestLoad_File(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
  auth_token: sekrit
agent:
  binary: fake-agent
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Server.AuthToken)
	assert.Equal(t, "fake-agent", cfg.Agent.Binary)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoad_EnvOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("STEWARD_SERVER_PORT", "7777")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoad_MalformedFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: closed"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8317, cfg.Server.Port)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := ExpandPath("~/foo/bar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "foo", "bar"), expanded)

	abs, err := ExpandPath("/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", abs)
}
