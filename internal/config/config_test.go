package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gps-recorder/internal/export"
	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/track"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/dev/serial0", cfg.Serial.Port)
	assert.Equal(t, "115200 8N1", cfg.Serial.Options.String())
	assert.Equal(t, 500, cfg.Serial.UpdateRateMS)
	assert.Equal(t, "data.db", cfg.Database.Path)
	assert.False(t, cfg.Database.ForeignKeys)
	assert.Empty(t, cfg.Listen)
	assert.Equal(t, 10*time.Minute, cfg.FlushInterval())

	p, err := cfg.SegmentPolicy()
	require.NoError(t, err)
	assert.Equal(t, track.NewDedupPolicy(), p)

	n := cfg.NormalizerOptions()
	assert.Equal(t, 3*time.Second, n.Staleness)
	assert.Equal(t, gps.DefaultSource, n.Source)

	e := cfg.ExportOptions("abc")
	assert.Equal(t, export.ModePerFlush, e.Mode)
	assert.Equal(t, "abc", e.SessionID)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "recorder.json", `{
  "serial": {"port": "/dev/ttyUSB0", "update_rate_ms": 200},
  "export": {"dir": "/var/lib/gps", "mode": "per_process"},
  "policy": {"name": "batch", "max_points": 50},
  "listen": ":8080"
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 200, cfg.Serial.UpdateRateMS)
	// untouched sections keep defaults
	assert.Equal(t, 115200, cfg.Serial.Options.BaudRate)
	assert.Equal(t, "data.db", cfg.Database.Path)
	assert.Equal(t, ":8080", cfg.Listen)

	p, err := cfg.SegmentPolicy()
	require.NoError(t, err)
	assert.Equal(t, track.BatchPolicy{MaxPoints: 50, MaxDuration: 3 * time.Second}, p)
	assert.Equal(t, export.ModePerProcess, cfg.ExportOptions("").Mode)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "recorder.yaml", `
database:
  path: /data/gps.db
  foreign_keys: true
policy:
  name: dedup
  min_distance: 5
  min_interval: 10s
  flush_interval: 30m
normalizer:
  staleness: 2s
  satellite_heuristic_only: true
mqtt:
  broker: tcp://localhost:1883
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/gps.db", cfg.Database.Path)
	assert.True(t, cfg.Database.ForeignKeys)
	assert.Equal(t, 30*time.Minute, cfg.FlushInterval())
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "gps/fix", cfg.MQTT.Topic)

	p, err := cfg.SegmentPolicy()
	require.NoError(t, err)
	assert.Equal(t, track.DedupPolicy{MinDistance: 5, MinInterval: 10 * time.Second}, p)

	n := cfg.NormalizerOptions()
	assert.Equal(t, 2*time.Second, n.Staleness)
	assert.True(t, n.SatelliteHeuristicOnly)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "recorder.toml", "", "extension"},
		{"json syntax", "bad.json", `{"serial":`, "failed to parse"},
		{"yaml syntax", "bad.yml", "serial: [", "failed to parse"},
		{"policy", "p.json", `{"policy":{"name":"kalman"}}`, "unknown segment policy"},
		{"mode", "m.json", `{"export":{"mode":"hourly"}}`, "export.mode"},
		{"duration", "d.json", `{"policy":{"flush_interval":"soon"}}`, "flush_interval"},
		{"negative", "n.json", `{"normalizer":{"staleness":"-1s"}}`, "non-negative"},
		{"rate", "r.json", `{"serial":{"update_rate_ms":50}}`, "update_rate_ms"},
		{"parity", "s.json", `{"serial":{"options":{"parity":"M"}}}`, "parity"},
		{"prefix", "x.json", `{"export":{"prefix":"../up"}}`, "path separator"},
		{"batch limits", "b.json", `{"policy":{"name":"batch","max_points":0,"max_duration":""}}`, "batch needs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to stat")
}

func TestFlushIntervalDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "f.json", `{"policy":{"flush_interval":"0s"}}`))
	require.NoError(t, err)
	assert.Zero(t, cfg.FlushInterval())
}
