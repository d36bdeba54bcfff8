package track_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/testutil"
	"github.com/banshee-data/gps-recorder/internal/track"
)

// ingest runs fixes through a segmenter the way the recorder does and
// returns the sealed segments and the final open segment.
func ingest(s *track.Segmenter, fixes []gps.Fix) (sealed []track.Segment, retained []gps.Fix, open track.Segment) {
	for _, f := range fixes {
		v := s.Offer(&open, f)
		if !v.Accept {
			continue
		}
		if v.Seal {
			sealed = append(sealed, open.Seal())
		}
		s.Retain(f)
		retained = append(retained, f)
		open.Append(f)
	}
	return sealed, retained, open
}

func TestDedupSameCoordinateScenario(t *testing.T) {
	s := track.NewSegmenter(track.NewDedupPolicy(), 0)
	fixes := []gps.Fix{
		testutil.Fix(48.1173, 11.5166, 0),
		testutil.Fix(48.1173, 11.5166, 1*time.Second),
		testutil.Fix(48.1173, 11.5166, 2*time.Second),
		testutil.Fix(48.1173, 11.5166, 6*time.Second),
	}

	sealed, retained, open := ingest(s, fixes)
	assert.Empty(t, sealed)
	require.Len(t, retained, 2)
	assert.True(t, retained[0].Time.Equal(fixes[0].Time))
	assert.True(t, retained[1].Time.Equal(fixes[3].Time))
	assert.Equal(t, 2, open.Len())
}

func TestDedupAcceptsDistantFix(t *testing.T) {
	p := track.NewDedupPolicy()
	last := testutil.Fix(48.1173, 11.5166, 0)
	// ~11 m north, 1 s later
	v := p.Evaluate(nil, &last, testutil.Fix(48.1174, 11.5166, time.Second))
	assert.Equal(t, track.Verdict{Accept: true}, v)
}

func TestDedupConsecutiveRetainedInvariant(t *testing.T) {
	p := track.NewDedupPolicy()
	s := track.NewSegmenter(p, 0)

	// Jittery walk: small steps, irregular intervals.
	var fixes []gps.Fix
	lat := 48.1173
	offset := time.Duration(0)
	for i := 0; i < 300; i++ {
		lat += float64(i%7) * 0.000005
		offset += time.Duration(300+(i%11)*170) * time.Millisecond
		fixes = append(fixes, testutil.Fix(lat, 11.5166, offset))
	}

	_, retained, _ := ingest(s, fixes)
	require.Greater(t, len(retained), 1)
	assert.Less(t, len(retained), len(fixes))
	for i := 1; i < len(retained); i++ {
		a, b := retained[i-1], retained[i]
		near := track.Distance(a, b) < p.MinDistance
		recent := b.Time.Sub(a.Time) < p.MinInterval
		assert.False(t, near && recent, "retained fixes %d and %d are both near and recent", i-1, i)
	}
}

func TestBatchSealsAtPointCap(t *testing.T) {
	s := track.NewSegmenter(track.NewBatchPolicy(), 0)
	fixes := testutil.Fixes(250, 10*time.Millisecond)

	sealed, retained, open := ingest(s, fixes)
	require.Len(t, sealed, 1)
	assert.Equal(t, 200, sealed[0].Len())
	assert.Len(t, retained, 250)
	assert.Equal(t, 50, open.Len())

	if diff := cmp.Diff(fixes[:200], sealed[0].Points()); diff != "" {
		t.Errorf("sealed points mismatch (-want +got):\n%s", diff)
	}
	first, ok := open.First()
	require.True(t, ok)
	assert.True(t, first.Time.Equal(fixes[200].Time))
}

func TestBatchSealsOnDuration(t *testing.T) {
	p := track.NewBatchPolicy()
	open := track.NewSegment(testutil.Fix(1, 1, 0), testutil.Fix(1, 1, time.Second))

	assert.Equal(t, track.Verdict{Accept: true}, p.Evaluate(&open, nil, testutil.Fix(1, 1, 3*time.Second)))
	assert.Equal(t, track.Verdict{Accept: true, Seal: true}, p.Evaluate(&open, nil, testutil.Fix(1, 1, 3*time.Second+time.Millisecond)))

	var empty track.Segment
	assert.Equal(t, track.Verdict{Accept: true}, p.Evaluate(&empty, nil, testutil.Fix(1, 1, time.Hour)))
}

func TestSegmenterFlushInterval(t *testing.T) {
	s := track.NewSegmenter(track.NewDedupPolicy(), 10*time.Second)
	fixes := testutil.Fixes(12, time.Second)

	sealed, _, open := ingest(s, fixes)
	require.Len(t, sealed, 1)
	assert.Equal(t, 11, sealed[0].Len())
	assert.Equal(t, 1, open.Len())

	last, ok := s.Last()
	require.True(t, ok)
	assert.True(t, last.Time.Equal(fixes[11].Time))
}

func TestNewPolicy(t *testing.T) {
	p, err := track.NewPolicy("")
	require.NoError(t, err)
	assert.Equal(t, track.PolicyDedup, p.Name())

	p, err = track.NewPolicy(track.PolicyBatch)
	require.NoError(t, err)
	assert.Equal(t, track.PolicyBatch, p.Name())

	_, err = track.NewPolicy("hourly")
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	a := testutil.Fix(48.1173, 11.5166, 0)
	assert.Zero(t, track.Distance(a, a))

	// One degree of latitude is about 111.2 km.
	b := testutil.Fix(49.1173, 11.5166, 0)
	assert.InDelta(t, 111195, track.Distance(a, b), 50)
	assert.InDelta(t, track.Distance(a, b), track.Distance(b, a), 1e-9)
}

func TestSegmentSealMovesPoints(t *testing.T) {
	seg := track.NewSegment(testutil.Fixes(3, time.Second)...)
	out := seg.Seal()
	assert.Equal(t, 0, seg.Len())
	assert.Equal(t, 3, out.Len())
	_, ok := seg.Last()
	assert.False(t, ok)

	pts := out.Points()
	pts[0].Latitude = 0
	first, _ := out.First()
	assert.NotZero(t, first.Latitude, "Points must return a copy")
}

func TestBufferDrainAndSnapshot(t *testing.T) {
	var b track.Buffer
	b.With(func(open *track.Segment) {
		for _, f := range testutil.Fixes(4, time.Second) {
			open.Append(f)
		}
	})
	assert.Equal(t, 4, b.Len())

	snap := b.Snapshot()
	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, 4, b.Len())

	drained := b.Drain()
	assert.Equal(t, 4, drained.Len())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 4, snap.Len())
}
