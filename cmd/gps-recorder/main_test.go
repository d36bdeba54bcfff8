package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gps-recorder/internal/serialmux"
	"github.com/banshee-data/gps-recorder/internal/testutil"
)

// setFlag overrides a flag value for the duration of the test.
func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, serialmux.DefaultPort, cfg.Serial.Port)
	assert.Equal(t, "data.db", cfg.Database.Path)
	assert.Empty(t, cfg.Listen)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recorder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: file.db\nlisten: \":9000\"\n"), 0o644))

	setFlag(t, configPath, path)
	setFlag(t, dbPath, filepath.Join(dir, "flag.db"))
	setFlag(t, outDir, dir)
	setFlag(t, policyName, "batch")
	setFlag(t, port, "/dev/ttyUSB0")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flag.db"), cfg.Database.Path)
	assert.Equal(t, dir, cfg.Export.Dir)
	assert.Equal(t, "batch", cfg.Policy.Name)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, ":9000", cfg.Listen)
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	setFlag(t, policyName, "kalman")
	_, err := loadConfig()
	assert.ErrorContains(t, err, "unknown segment policy")
}

func TestOpenSerialDevMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.nmea")
	require.NoError(t, os.WriteFile(path, []byte(testutil.GGA(48.1173, 11.5166, 8)+"\n"), 0o644))
	setFlag(t, devMode, true)
	setFlag(t, fixtures, path)

	cfg, err := loadConfig()
	require.NoError(t, err)
	m, err := openSerial(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Close())
}

func TestOpenSerialDevModeMissingFixture(t *testing.T) {
	setFlag(t, devMode, true)
	setFlag(t, fixtures, filepath.Join(t.TempDir(), "missing.nmea"))

	cfg, err := loadConfig()
	require.NoError(t, err)
	_, err = openSerial(cfg)
	assert.Error(t, err)
}
