package gps_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/timeutil"
)

func position(sats int) gps.PositionFix {
	return gps.PositionFix{
		HasFix:     true,
		Latitude:   48.1173,
		Longitude:  11.5166,
		Satellites: sats,
		Altitude:   gps.Float(545.4),
	}
}

func TestNormalizeNoFix(t *testing.T) {
	n := gps.NewNormalizer(timeutil.NewMockClock(time.Now()), gps.NormalizerOptions{})
	_, ok := n.Normalize(gps.PositionFix{HasFix: false, Satellites: 8})
	assert.False(t, ok)
}

func TestNormalizeUsesClockTime(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	start := time.Date(2026, 1, 2, 13, 4, 5, 0, loc)
	n := gps.NewNormalizer(timeutil.NewMockClock(start), gps.NormalizerOptions{})

	f, ok := n.Normalize(position(8))
	require.True(t, ok)
	assert.True(t, f.Time.Equal(start))
	assert.Equal(t, time.UTC, f.Time.Location())
	assert.Equal(t, gps.DefaultSource, f.Source)
	assert.Equal(t, gps.Fix3D, f.Quality)
	assert.Nil(t, f.Speed)
	assert.Nil(t, f.HDOP)
	require.NoError(t, f.Validate())
}

func TestNormalizeSatelliteHeuristic(t *testing.T) {
	n := gps.NewNormalizer(timeutil.NewMockClock(time.Now()), gps.NormalizerOptions{})

	f, _ := n.Normalize(position(3))
	assert.Equal(t, gps.Fix2D, f.Quality)

	f, _ = n.Normalize(position(4))
	assert.Equal(t, gps.Fix3D, f.Quality)
}

func TestNormalizeAttachesFreshAuxiliaryData(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	n := gps.NewNormalizer(clock, gps.NormalizerOptions{})

	n.ObserveSpeed(gps.GroundSpeed{KPH: 36})
	n.ObserveDOP(gps.DOPReading{FixType: gps.Fix2D, PDOP: 2.5, HDOP: 1.3, VDOP: 2.1})
	clock.Advance(2900 * time.Millisecond)

	f, ok := n.Normalize(position(8))
	require.True(t, ok)
	require.NotNil(t, f.Speed)
	assert.InDelta(t, 10.0, *f.Speed, 1e-9)
	require.NotNil(t, f.HDOP)
	assert.Equal(t, 1.3, *f.HDOP)
	assert.Equal(t, 2.1, *f.VDOP)
	assert.Equal(t, 2.5, *f.PDOP)
	// Fresh GSA fix type wins over the satellite count.
	assert.Equal(t, gps.Fix2D, f.Quality)
}

func TestNormalizeDropsStaleAuxiliaryData(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	n := gps.NewNormalizer(clock, gps.NormalizerOptions{})

	n.ObserveSpeed(gps.GroundSpeed{KPH: 36})
	n.ObserveDOP(gps.DOPReading{FixType: gps.Fix2D, PDOP: 2.5, HDOP: 1.3, VDOP: 2.1})
	clock.Advance(gps.DefaultStaleness)

	f, ok := n.Normalize(position(8))
	require.True(t, ok)
	assert.Nil(t, f.Speed)
	assert.Nil(t, f.HDOP)
	assert.Nil(t, f.VDOP)
	assert.Nil(t, f.PDOP)
	assert.Equal(t, gps.Fix3D, f.Quality)

	st := n.State()
	assert.Equal(t, 36.0, st.SpeedKPH)
}

func TestNormalizeHeuristicOnlyIgnoresGSA(t *testing.T) {
	n := gps.NewNormalizer(timeutil.NewMockClock(time.Now()), gps.NormalizerOptions{SatelliteHeuristicOnly: true})
	n.ObserveDOP(gps.DOPReading{FixType: gps.Fix2D, HDOP: 1})

	f, _ := n.Normalize(position(9))
	assert.Equal(t, gps.Fix3D, f.Quality)
	require.NotNil(t, f.HDOP)
}

func TestNormalizeCustomOptions(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	n := gps.NewNormalizer(clock, gps.NormalizerOptions{Staleness: time.Second, Source: "NEO-6M"})

	n.ObserveSpeed(gps.GroundSpeed{KPH: 3.6})
	clock.Advance(1500 * time.Millisecond)

	f, _ := n.Normalize(position(8))
	assert.Equal(t, "NEO-6M", f.Source)
	assert.Nil(t, f.Speed)
}
