package gps

import (
	"time"

	"github.com/banshee-data/gps-recorder/internal/timeutil"
	"github.com/banshee-data/gps-recorder/internal/units"
)

// DefaultStaleness is how long a speed or DOP reading stays attachable to
// new fixes.
const DefaultStaleness = 3 * time.Second

// NormalizerOptions configures a Normalizer.
type NormalizerOptions struct {
	// Staleness is the maximum age of an auxiliary reading.
	Staleness time.Duration
	// Source tags every fix with the receiver model.
	Source string
	// SatelliteHeuristicOnly ignores the GSA fix type and derives 2D/3D
	// from the satellite count alone (exactly 3 satellites means 2D).
	SatelliteHeuristicOnly bool
}

// AuxState is the most recent auxiliary receiver data. Zero times mean the
// reading has never been received.
type AuxState struct {
	SpeedKPH float64
	SpeedAt  time.Time

	PDOP    float64
	HDOP    float64
	VDOP    float64
	FixType Quality
	DOPAt   time.Time
}

// Normalizer owns the auxiliary state and builds fixes from GGA sentences.
// It is not safe for concurrent use; the ingestion loop is its only caller.
type Normalizer struct {
	clock timeutil.Clock
	opts  NormalizerOptions
	aux   AuxState
}

// NewNormalizer returns a Normalizer with empty auxiliary state.
func NewNormalizer(clock timeutil.Clock, opts NormalizerOptions) *Normalizer {
	if opts.Staleness <= 0 {
		opts.Staleness = DefaultStaleness
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	return &Normalizer{clock: clock, opts: opts}
}

// ObserveSpeed records a VTG reading.
func (n *Normalizer) ObserveSpeed(s GroundSpeed) {
	n.aux.SpeedKPH = s.KPH
	n.aux.SpeedAt = n.clock.Now()
}

// ObserveDOP records a GSA reading.
func (n *Normalizer) ObserveDOP(d DOPReading) {
	n.aux.PDOP = d.PDOP
	n.aux.HDOP = d.HDOP
	n.aux.VDOP = d.VDOP
	n.aux.FixType = d.FixType
	n.aux.DOPAt = n.clock.Now()
}

// State returns a copy of the auxiliary state.
func (n *Normalizer) State() AuxState {
	return n.aux
}

// Normalize builds a Fix from a GGA sentence and the current auxiliary
// state. It reports false when the receiver has no fix.
func (n *Normalizer) Normalize(p PositionFix) (Fix, bool) {
	if !p.HasFix {
		return Fix{}, false
	}

	f := Fix{
		Time:       n.clock.Now().UTC(),
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Satellites: p.Satellites,
		Source:     n.opts.Source,
	}
	if p.Altitude != nil {
		f.Elevation = Float(*p.Altitude)
	}

	dopFresh := n.fresh(n.aux.DOPAt)
	f.Quality = n.quality(p.Satellites, dopFresh)

	if n.fresh(n.aux.SpeedAt) {
		f.Speed = Float(units.ToMPS(n.aux.SpeedKPH, units.KPH))
	}
	if dopFresh {
		f.HDOP = Float(n.aux.HDOP)
		f.VDOP = Float(n.aux.VDOP)
		f.PDOP = Float(n.aux.PDOP)
	}
	return f, true
}

func (n *Normalizer) quality(satellites int, dopFresh bool) Quality {
	if !n.opts.SatelliteHeuristicOnly && dopFresh {
		switch n.aux.FixType {
		case Fix2D, Fix3D:
			return n.aux.FixType
		}
	}
	if satellites == 3 {
		return Fix2D
	}
	return Fix3D
}

func (n *Normalizer) fresh(at time.Time) bool {
	return !at.IsZero() && n.clock.Since(at) < n.opts.Staleness
}
