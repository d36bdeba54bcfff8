// Package track groups accepted fixes into segments and decides, per
// policy, which fixes are retained and when a segment is sealed.
package track

import (
	"sync"

	"github.com/banshee-data/gps-recorder/internal/gps"
)

// Segment is an ordered, append-only run of fixes. Points keep insertion
// order and are never re-sorted.
type Segment struct {
	points []gps.Fix
}

// NewSegment returns a segment holding points in order.
func NewSegment(points ...gps.Fix) Segment {
	return Segment{points: append([]gps.Fix(nil), points...)}
}

// Append adds f at the end of the segment.
func (s *Segment) Append(f gps.Fix) {
	s.points = append(s.points, f)
}

func (s *Segment) Len() int {
	return len(s.points)
}

// First returns the oldest point.
func (s *Segment) First() (gps.Fix, bool) {
	if len(s.points) == 0 {
		return gps.Fix{}, false
	}
	return s.points[0], true
}

// Last returns the newest point.
func (s *Segment) Last() (gps.Fix, bool) {
	if len(s.points) == 0 {
		return gps.Fix{}, false
	}
	return s.points[len(s.points)-1], true
}

// Points returns a copy of the points in insertion order.
func (s *Segment) Points() []gps.Fix {
	return append([]gps.Fix(nil), s.points...)
}

// Seal moves the points into a new segment and leaves s empty.
func (s *Segment) Seal() Segment {
	out := Segment{points: s.points}
	s.points = nil
	return out
}

// Buffer is the open segment shared between the ingestion loop and the
// shutdown coordinator.
type Buffer struct {
	mu   sync.RWMutex
	open Segment
}

// With runs fn with exclusive access to the open segment.
func (b *Buffer) With(fn func(open *Segment)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.open)
}

// Drain seals and returns the open segment.
func (b *Buffer) Drain() Segment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open.Seal()
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.open.Len()
}

// Snapshot returns a copy of the open segment.
func (b *Buffer) Snapshot() Segment {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Segment{points: b.open.Points()}
}
