package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_KeepsDefaultsForMissingSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
drive:
  request_timeout: 30s
compression:
  image_quality: 70
notification:
  enabled: true
  send_to: [jane]
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Drive.RequestTimeout)
	assert.Equal(t, 100, cfg.Drive.PageSize)
	assert.Equal(t, 70, cfg.Compression.ImageQuality)
	assert.Equal(t, 1920, cfg.Compression.MaxDimension)
	assert.Equal(t, int64(50*1024), cfg.Compression.SmallImageThreshold)
	assert.True(t, cfg.Notification.Enabled)
	assert.Equal(t, []string{"jane"}, cfg.Notification.SendTo)
	assert.Equal(t, "config/token.json", cfg.Google.TokenFile)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("drive: [unterminated"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Google.DefaultFolderID = "folder-123"
	cfg.Metrics.Textfile = "/var/lib/node_exporter/drive.prom"

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(AccessTokenEnv+"=from-dotenv\n"), 0600))

	t.Setenv(AccessTokenEnv, "")
	os.Unsetenv(AccessTokenEnv)

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "from-dotenv", AccessToken())
}
