package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: visitord
  user: visitord
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 0.5, cfg.Vision.DetectionThreshold)
	assert.Equal(t, 1, cfg.Tracking.MaxAge)
	assert.Equal(t, 0.3, cfg.Tracking.IoUThreshold)
	assert.Equal(t, 0.6, cfg.Session.SimilarityThreshold)
	assert.Equal(t, 3*time.Second, cfg.Session.ExitTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadParsesSessionSettings(t *testing.T) {
	path := writeConfig(t, `
session:
  similarity_threshold: 0.72
  exit_timeout: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.72, cfg.Session.SimilarityThreshold)
	assert.Equal(t, 5*time.Second, cfg.Session.ExitTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  host: db.internal
session:
  similarity_threshold: 0.65
`)

	t.Setenv("VT_SERVER_PORT", "9999")
	t.Setenv("VT_DB_HOST", "override.internal")
	t.Setenv("VT_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("VT_EXIT_TIMEOUT", "1500ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, 0.8, cfg.Session.SimilarityThreshold)
	assert.Equal(t, 1500*time.Millisecond, cfg.Session.ExitTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		Name:     "visitord",
		User:     "app",
		Password: "pw",
	}
	assert.Equal(t, "postgres://app:pw@db:5433/visitord?sslmode=disable", d.DSN())
}
