package track

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/gps-recorder/internal/gps"
)

// Policy names accepted in configuration.
const (
	PolicyDedup = "dedup"
	PolicyBatch = "batch"
)

// Defaults for the two policies.
const (
	DefaultMinDistance = 3.0 // metres
	DefaultMinInterval = 5 * time.Second
	DefaultMaxPoints   = 200
	DefaultMaxDuration = 3 * time.Second

	// DefaultFlushInterval bounds how long a dedup session stays in memory
	// before it is written out.
	DefaultFlushInterval = 10 * time.Minute
)

// Verdict is the outcome of offering a fix to a policy. Seal asks the caller
// to seal the open segment before appending the fix.
type Verdict struct {
	Accept bool
	Seal   bool
}

// Policy decides whether a candidate fix is retained. last is the most
// recently retained fix, nil before the first one.
type Policy interface {
	Evaluate(open *Segment, last *gps.Fix, candidate gps.Fix) Verdict
	Name() string
}

// DedupPolicy drops fixes that are both close to and soon after the last
// retained fix. It never seals.
type DedupPolicy struct {
	MinDistance float64
	MinInterval time.Duration
}

// NewDedupPolicy returns a DedupPolicy with the default thresholds.
func NewDedupPolicy() DedupPolicy {
	return DedupPolicy{MinDistance: DefaultMinDistance, MinInterval: DefaultMinInterval}
}

func (DedupPolicy) Name() string { return PolicyDedup }

func (p DedupPolicy) Evaluate(_ *Segment, last *gps.Fix, candidate gps.Fix) Verdict {
	if last == nil {
		return Verdict{Accept: true}
	}
	near := Distance(*last, candidate) < p.MinDistance
	recent := candidate.Time.Sub(last.Time) < p.MinInterval
	return Verdict{Accept: !(near && recent)}
}

// BatchPolicy accepts every fix and seals the open segment once it holds
// MaxPoints fixes or spans more than MaxDuration.
type BatchPolicy struct {
	MaxPoints   int
	MaxDuration time.Duration
}

// NewBatchPolicy returns a BatchPolicy with the default limits.
func NewBatchPolicy() BatchPolicy {
	return BatchPolicy{MaxPoints: DefaultMaxPoints, MaxDuration: DefaultMaxDuration}
}

func (BatchPolicy) Name() string { return PolicyBatch }

func (p BatchPolicy) Evaluate(open *Segment, _ *gps.Fix, candidate gps.Fix) Verdict {
	first, ok := open.First()
	if !ok {
		return Verdict{Accept: true}
	}
	full := p.MaxPoints > 0 && open.Len() >= p.MaxPoints
	long := p.MaxDuration > 0 && candidate.Time.Sub(first.Time) > p.MaxDuration
	return Verdict{Accept: true, Seal: full || long}
}

// NewPolicy returns the default-configured policy for name.
func NewPolicy(name string) (Policy, error) {
	switch name {
	case PolicyDedup, "":
		return NewDedupPolicy(), nil
	case PolicyBatch:
		return NewBatchPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown segment policy %q", name)
	}
}

const earthRadius = 6371000.0 // metres

// Distance returns the great-circle distance in metres between two fixes.
func Distance(a, b gps.Fix) float64 {
	if a.Latitude == b.Latitude && a.Longitude == b.Longitude {
		return 0
	}
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
