package track

import (
	"time"

	"github.com/banshee-data/gps-recorder/internal/gps"
)

// Segmenter applies a Policy to incoming fixes and remembers the last
// retained fix across seals. It is owned by the ingestion loop.
type Segmenter struct {
	policy Policy
	// flush seals the open segment once it spans more than this; 0 disables.
	flush time.Duration
	last  *gps.Fix
}

// NewSegmenter returns a Segmenter for policy. flushInterval may be 0.
func NewSegmenter(policy Policy, flushInterval time.Duration) *Segmenter {
	return &Segmenter{policy: policy, flush: flushInterval}
}

func (s *Segmenter) Policy() Policy {
	return s.policy
}

// Offer evaluates candidate against the open segment without changing any
// state. Call Retain once the fix has been accepted.
func (s *Segmenter) Offer(open *Segment, candidate gps.Fix) Verdict {
	v := s.policy.Evaluate(open, s.last, candidate)
	if v.Accept && !v.Seal && s.flush > 0 {
		if first, ok := open.First(); ok && candidate.Time.Sub(first.Time) > s.flush {
			v.Seal = true
		}
	}
	return v
}

// Retain records f as the last retained fix.
func (s *Segmenter) Retain(f gps.Fix) {
	s.last = &f
}

// Last returns the last retained fix.
func (s *Segmenter) Last() (gps.Fix, bool) {
	if s.last == nil {
		return gps.Fix{}, false
	}
	return *s.last, true
}
