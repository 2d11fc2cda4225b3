package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "mcproxyd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestLoadFillsInDefaultsForOmittedFields(t *testing.T) {
	// given
	path := writeConfigFile(t, `
listen_address: ":11311"
`)

	// when
	cfg, err := Load(path)

	// then
	require.NoError(t, err)
	assert.Equal(t, ":11311", cfg.ListenAddress)
	assert.Equal(t, 4096, cfg.Buffer.MinSize)
	assert.Equal(t, 1<<20, cfg.Buffer.MaxSize)
	assert.Equal(t, uint64(10_000), cfg.Buffer.AdjustInterval)
	assert.Equal(t, "mcproxy", cfg.Metrics.Namespace)
	assert.NotEmpty(t, cfg.Generation)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	// given
	path := writeConfigFile(t, `
listen_address: ":12345"
buffer:
  min_size: 8192
  max_size: 2097152
  use_secure_allocator: true
  adjust_interval: 500
metrics:
  namespace: custom
  subsystem: router
  address: ":9999"
`)

	// when
	cfg, err := Load(path)

	// then
	require.NoError(t, err)
	assert.Equal(t, ":12345", cfg.ListenAddress)
	assert.Equal(t, 8192, cfg.Buffer.MinSize)
	assert.Equal(t, 2097152, cfg.Buffer.MaxSize)
	assert.True(t, cfg.Buffer.UseSecureAlloc)
	assert.Equal(t, uint64(500), cfg.Buffer.AdjustInterval)
	assert.Equal(t, "custom", cfg.Metrics.Namespace)
	assert.Equal(t, "router", cfg.Metrics.Subsystem)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
}

func TestLoadEachCallStampsAFreshGeneration(t *testing.T) {
	// given
	path := writeConfigFile(t, "listen_address: \":11311\"\n")

	// when
	first, err := Load(path)
	require.NoError(t, err)
	second, err := Load(path)
	require.NoError(t, err)

	// then
	assert.NotEqual(t, first.Generation, second.Generation)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAMLReturnsError(t *testing.T) {
	path := writeConfigFile(t, "listen_address: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}
