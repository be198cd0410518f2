package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "EarthEngine_Exports", cfg.Export.Folder)
	assert.Equal(t, "EPSG:4326", cfg.Export.CRS)
	assert.Equal(t, int64(1e10), cfg.Export.MaxPixels)
	assert.Equal(t, float64(10), cfg.Export.ScaleMeters)
	assert.Equal(t, 0, cfg.Store.MaxEntries, "store is unbounded by default")

	_, err := cfg.HTTPTimeout()
	assert.NoError(t, err)
	_, err = cfg.PollInterval()
	assert.NoError(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
auth:
  key_file: /secrets/ee-key.json
  project: my-ee-project
store:
  max_entries: 500
export:
  folder: CustomExports
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/secrets/ee-key.json", cfg.Auth.KeyFile)
	assert.Equal(t, "my-ee-project", cfg.Auth.Project)
	assert.Equal(t, 500, cfg.Store.MaxEntries)
	assert.Equal(t, "CustomExports", cfg.Export.Folder)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset fields keep defaults.
	assert.Equal(t, "EPSG:4326", cfg.Export.CRS)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EEMCP_KEY_FILE", "/env/key.json")
	t.Setenv("EEMCP_PROJECT", "env-project")
	t.Setenv("EEMCP_STORE_MAX_ENTRIES", "42")
	t.Setenv("EEMCP_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/key.json", cfg.Auth.KeyFile)
	assert.Equal(t, "env-project", cfg.Auth.Project)
	assert.Equal(t, 42, cfg.Store.MaxEntries)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestGoogleCredentialsFallback(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/adc/key.json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/adc/key.json", cfg.Auth.KeyFile)

	// Explicit EEMCP_KEY_FILE wins.
	t.Setenv("EEMCP_KEY_FILE", "/explicit/key.json")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "/explicit/key.json", cfg.Auth.KeyFile)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  http_timeout: soon\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
