package gps

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultSource tags fixes from the MTK3339 receiver the recorder ships with.
const DefaultSource = "MTK3339"

// ErrInvalidFix is returned when a serialized fix does not describe a
// usable position.
var ErrInvalidFix = errors.New("invalid fix")

// Quality is the dimensionality of a fix.
type Quality int

const (
	FixNone Quality = iota
	Fix2D
	Fix3D
)

// String returns the GPX fixType spelling.
func (q Quality) String() string {
	switch q {
	case Fix2D:
		return "2d"
	case Fix3D:
		return "3d"
	default:
		return "none"
	}
}

// ParseQuality parses the GPX fixType spelling.
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "none", "":
		return FixNone, nil
	case "2d":
		return Fix2D, nil
	case "3d":
		return Fix3D, nil
	default:
		return FixNone, fmt.Errorf("unknown fix quality %q", s)
	}
}

func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *Quality) UnmarshalText(b []byte) error {
	v, err := ParseQuality(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// Fix is one normalised position sample. Latitude and Longitude are always
// meaningful: a Fix is never built for a sentence without a fix.
type Fix struct {
	Time       time.Time `json:"time"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
	Elevation  *float64  `json:"ele,omitempty"`
	Quality    Quality   `json:"fix"`
	Satellites int       `json:"sat"`
	HDOP       *float64  `json:"hdop,omitempty"`
	VDOP       *float64  `json:"vdop,omitempty"`
	PDOP       *float64  `json:"pdop,omitempty"`
	// Speed is the ground speed in m/s.
	Speed  *float64 `json:"speed,omitempty"`
	Source string   `json:"src,omitempty"`
}

// Validate reports whether f can be stored or exported.
func (f Fix) Validate() error {
	if f.Quality != Fix2D && f.Quality != Fix3D {
		return fmt.Errorf("%w: quality %s", ErrInvalidFix, f.Quality)
	}
	if f.Latitude < -90 || f.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidFix, f.Latitude)
	}
	if f.Longitude < -180 || f.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidFix, f.Longitude)
	}
	if f.Time.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidFix)
	}
	return nil
}

// Marshal serializes the fix in the form stored in the durable log.
func (f Fix) Marshal() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseFix decodes a fix previously produced by Marshal.
func ParseFix(payload string) (Fix, error) {
	var f Fix
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Fix{}, fmt.Errorf("decode fix: %w", err)
	}
	if err := f.Validate(); err != nil {
		return Fix{}, err
	}
	f.Time = f.Time.UTC()
	return f, nil
}

// Float returns a pointer to v, for the optional Fix fields.
func Float(v float64) *float64 {
	return &v
}
