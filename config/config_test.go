package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test_*")
	require.NoError(t, err)
	t.Cleanup(func() {
		os.RemoveAll(tempDir)
	})

	// 配置文件不存在时使用默认值
	cfg, err := Load(filepath.Join(tempDir, "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Artifacts.Type)
	assert.Equal(t, "file", cfg.Progress.Type)
	assert.Equal(t, 4, cfg.Validator.SegmentSize)
	assert.Equal(t, "goroutine", cfg.Launcher.Mode)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestLoadFromFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test_*")
	require.NoError(t, err)
	t.Cleanup(func() {
		os.RemoveAll(tempDir)
	})

	configPath := filepath.Join(tempDir, "config.yaml")
	content := `
server:
  port: 9090
validator:
  segment_size: 8
launcher:
  mode: sync
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Validator.SegmentSize)
	assert.Equal(t, "sync", cfg.Launcher.Mode)
	// 未覆盖的配置保持默认值
	assert.Equal(t, "local", cfg.Artifacts.Type)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test_*")
	require.NoError(t, err)
	t.Cleanup(func() {
		os.RemoveAll(tempDir)
	})

	configPath := filepath.Join(tempDir, "config.yaml")
	content := `
launcher:
  mode: carrier-pigeon
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	_, err = Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("TEST_SECRET_KEY", "s3cret")

	assert.Equal(t, "s3cret", resolveEnvRef("${TEST_SECRET_KEY}"))
	assert.Equal(t, "plain-value", resolveEnvRef("plain-value"))
	// 未定义的环境变量保持原样
	assert.Equal(t, "${NOT_SET_ANYWHERE}", resolveEnvRef("${NOT_SET_ANYWHERE}"))
}
