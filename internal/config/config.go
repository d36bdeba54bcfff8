// Package config loads the recorder configuration from a JSON or YAML file.
// Fields omitted from the file keep their defaults, so partial configs are
// safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/gps-recorder/internal/db"
	"github.com/banshee-data/gps-recorder/internal/export"
	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/publish"
	"github.com/banshee-data/gps-recorder/internal/serialmux"
	"github.com/banshee-data/gps-recorder/internal/track"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

type Config struct {
	Serial     SerialConfig     `json:"serial" yaml:"serial"`
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Export     ExportConfig     `json:"export" yaml:"export"`
	Policy     PolicyConfig     `json:"policy" yaml:"policy"`
	Normalizer NormalizerConfig `json:"normalizer" yaml:"normalizer"`
	// Listen is the status server address; empty disables it.
	Listen string          `json:"listen" yaml:"listen"`
	MQTT   publish.Options `json:"mqtt" yaml:"mqtt"`
}

type SerialConfig struct {
	Port    string                `json:"port" yaml:"port"`
	Options serialmux.PortOptions `json:"options" yaml:"options"`
	// UpdateRateMS is sent to the receiver as PMTK220.
	UpdateRateMS int `json:"update_rate_ms" yaml:"update_rate_ms"`
}

type DatabaseConfig struct {
	Path        string `json:"path" yaml:"path"`
	ForeignKeys bool   `json:"foreign_keys" yaml:"foreign_keys"`
}

type ExportConfig struct {
	Dir    string `json:"dir" yaml:"dir"`
	Prefix string `json:"prefix" yaml:"prefix"`
	Mode   string `json:"mode" yaml:"mode"`
}

// PolicyConfig selects the segment policy. Durations are strings like "5s".
type PolicyConfig struct {
	Name          string  `json:"name" yaml:"name"`
	MinDistance   float64 `json:"min_distance" yaml:"min_distance"`
	MinInterval   string  `json:"min_interval" yaml:"min_interval"`
	MaxPoints     int     `json:"max_points" yaml:"max_points"`
	MaxDuration   string  `json:"max_duration" yaml:"max_duration"`
	FlushInterval string  `json:"flush_interval" yaml:"flush_interval"`
}

type NormalizerConfig struct {
	Staleness              string `json:"staleness" yaml:"staleness"`
	Source                 string `json:"source" yaml:"source"`
	SatelliteHeuristicOnly bool   `json:"satellite_heuristic_only" yaml:"satellite_heuristic_only"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:         serialmux.DefaultPort,
			Options:      serialmux.PortOptions{BaudRate: serialmux.DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"},
			UpdateRateMS: gps.DefaultUpdateRateMS,
		},
		Database: DatabaseConfig{Path: db.DefaultPath},
		Export: ExportConfig{
			Dir:    ".",
			Prefix: export.DefaultPrefix,
			Mode:   string(export.ModePerFlush),
		},
		Policy: PolicyConfig{
			Name:          track.PolicyDedup,
			MinDistance:   track.DefaultMinDistance,
			MinInterval:   track.DefaultMinInterval.String(),
			MaxPoints:     track.DefaultMaxPoints,
			MaxDuration:   track.DefaultMaxDuration.String(),
			FlushInterval: track.DefaultFlushInterval.String(),
		},
		Normalizer: NormalizerConfig{
			Staleness: gps.DefaultStaleness.String(),
			Source:    gps.DefaultSource,
		},
		MQTT: publish.Options{Topic: publish.DefaultTopic},
	}
}

// Load reads path over the defaults. The extension selects the format:
// .json, .yaml or .yml.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port must be set")
	}
	if _, err := c.Serial.Options.Normalize(); err != nil {
		return fmt.Errorf("serial.options: %w", err)
	}
	if c.Serial.UpdateRateMS < gps.MinUpdateRateMS || c.Serial.UpdateRateMS > gps.MaxUpdateRateMS {
		return fmt.Errorf("serial.update_rate_ms must be between %d and %d, got %d",
			gps.MinUpdateRateMS, gps.MaxUpdateRateMS, c.Serial.UpdateRateMS)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	if _, err := export.ParseMode(c.Export.Mode); err != nil {
		return fmt.Errorf("export.mode: %w", err)
	}
	if strings.ContainsAny(c.Export.Prefix, `/\`) {
		return fmt.Errorf("export.prefix %q must not contain a path separator", c.Export.Prefix)
	}
	if _, err := c.SegmentPolicy(); err != nil {
		return err
	}
	if _, err := duration("policy.flush_interval", c.Policy.FlushInterval); err != nil {
		return err
	}
	if _, err := duration("normalizer.staleness", c.Normalizer.Staleness); err != nil {
		return err
	}
	return nil
}

// SegmentPolicy builds the configured track policy.
func (c *Config) SegmentPolicy() (track.Policy, error) {
	p := c.Policy
	switch p.Name {
	case track.PolicyDedup, "":
		interval, err := duration("policy.min_interval", p.MinInterval)
		if err != nil {
			return nil, err
		}
		if p.MinDistance < 0 || interval < 0 {
			return nil, fmt.Errorf("policy: min_distance and min_interval must be non-negative")
		}
		return track.DedupPolicy{MinDistance: p.MinDistance, MinInterval: interval}, nil
	case track.PolicyBatch:
		maxDuration, err := duration("policy.max_duration", p.MaxDuration)
		if err != nil {
			return nil, err
		}
		if p.MaxPoints <= 0 && maxDuration <= 0 {
			return nil, fmt.Errorf("policy: batch needs max_points or max_duration")
		}
		return track.BatchPolicy{MaxPoints: p.MaxPoints, MaxDuration: maxDuration}, nil
	default:
		return nil, fmt.Errorf("policy: unknown segment policy %q", p.Name)
	}
}

// FlushInterval returns the periodic seal interval, 0 when disabled ("0s").
func (c *Config) FlushInterval() time.Duration {
	d, _ := duration("policy.flush_interval", c.Policy.FlushInterval)
	return d
}

// NormalizerOptions converts the normalizer section.
func (c *Config) NormalizerOptions() gps.NormalizerOptions {
	staleness, _ := duration("normalizer.staleness", c.Normalizer.Staleness)
	return gps.NormalizerOptions{
		Staleness:              staleness,
		Source:                 c.Normalizer.Source,
		SatelliteHeuristicOnly: c.Normalizer.SatelliteHeuristicOnly,
	}
}

// ExportOptions converts the export section. Mode must already be valid.
func (c *Config) ExportOptions(sessionID string) export.Options {
	mode, _ := export.ParseMode(c.Export.Mode)
	return export.Options{
		Dir:       c.Export.Dir,
		Prefix:    c.Export.Prefix,
		Mode:      mode,
		SessionID: sessionID,
	}
}

func duration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be non-negative, got %s", field, s)
	}
	return d, nil
}
