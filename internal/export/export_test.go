package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gps-recorder/internal/fsutil"
	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/gpx"
	"github.com/banshee-data/gps-recorder/internal/testutil"
	"github.com/banshee-data/gps-recorder/internal/timeutil"
	"github.com/banshee-data/gps-recorder/internal/track"
)

func newTestExporter(mode Mode) (*Exporter, *fsutil.MemoryFileSystem, *timeutil.MockClock) {
	fs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	e := New(fs, clock, Options{Dir: "out", Prefix: "track", Mode: mode, SessionID: "abc"})
	return e, fs, clock
}

func readFixes(t *testing.T, fs *fsutil.MemoryFileSystem, path string) (*gpx.Document, []gps.Fix) {
	t.Helper()
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	doc, err := gpx.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	fixes, err := doc.Fixes()
	require.NoError(t, err)
	return doc, fixes
}

func TestExportEmptySegmentIsNoop(t *testing.T) {
	e, fs, _ := newTestExporter(ModePerFlush)

	path, err := e.Export(track.Segment{})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, fs.Files(""))
	assert.Equal(t, 0, e.Exports())
}

func TestExportPerFlush(t *testing.T) {
	e, fs, clock := newTestExporter(ModePerFlush)
	fixes := testutil.Fixes(5, time.Second)

	path, err := e.Export(track.NewSegment(fixes...))
	require.NoError(t, err)
	assert.Equal(t, "out/track-2026-03-14T093000.gpx", path)

	doc, got := readFixes(t, fs, path)
	if diff := cmp.Diff(fixes, got); diff != "" {
		t.Errorf("exported points mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, doc.Tracks, 1)
	assert.Len(t, doc.Tracks[0].Segments, 1)
	assert.Equal(t, "session abc", doc.Metadata.Desc)

	// Same second: suffixed name, first file untouched.
	path2, err := e.Export(track.NewSegment(fixes[:1]...))
	require.NoError(t, err)
	assert.Equal(t, "out/track-2026-03-14T093000-1.gpx", path2)
	path3, err := e.Export(track.NewSegment(fixes[:1]...))
	require.NoError(t, err)
	assert.Equal(t, "out/track-2026-03-14T093000-2.gpx", path3)

	clock.Advance(time.Second)
	path4, err := e.Export(track.NewSegment(fixes[:1]...))
	require.NoError(t, err)
	assert.Equal(t, "out/track-2026-03-14T093001.gpx", path4)

	assert.Len(t, fs.Files("out/"), 4)
	assert.Equal(t, 4, e.Exports())
}

func TestExportPerProcess(t *testing.T) {
	e, fs, clock := newTestExporter(ModePerProcess)
	fixes := testutil.Fixes(6, time.Second)

	path, err := e.Export(track.NewSegment(fixes[:3]...))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	path2, err := e.Export(track.NewSegment(fixes[3:]...))
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	assert.Len(t, fs.Files(""), 1)

	doc, got := readFixes(t, fs, path)
	require.Len(t, doc.Tracks, 1)
	assert.Len(t, doc.Tracks[0].Segments, 2)
	if diff := cmp.Diff(fixes, got); diff != "" {
		t.Errorf("exported points mismatch (-want +got):\n%s", diff)
	}
}

func TestExportWriteFailureDropsSegment(t *testing.T) {
	e, fs, _ := newTestExporter(ModePerProcess)
	fixes := testutil.Fixes(4, time.Second)

	_, err := e.Export(track.NewSegment(fixes[:2]...))
	require.NoError(t, err)

	boom := errors.New("disk full")
	fs.WriteErr = boom
	_, err = e.Export(track.NewSegment(fixes[2:3]...))
	assert.ErrorIs(t, err, boom)

	fs.WriteErr = nil
	path, err := e.Export(track.NewSegment(fixes[3:]...))
	require.NoError(t, err)

	doc, got := readFixes(t, fs, path)
	assert.Len(t, doc.Tracks[0].Segments, 2)
	require.Len(t, got, 3)
	assert.True(t, got[2].Time.Equal(fixes[3].Time))
	assert.Equal(t, 2, e.Exports())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePerFlush, m)

	m, err = ParseMode("per_process")
	require.NoError(t, err)
	assert.Equal(t, ModePerProcess, m)

	_, err = ParseMode("hourly")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	e, _, _ := newTestExporter(ModePerFlush)
	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, track.NewSegment(testutil.Fixes(2, time.Second)...)))
	assert.Contains(t, buf.String(), "<trkseg>")

	// No segments still yields a valid document with an empty track.
	buf.Reset()
	require.NoError(t, e.Render(&buf))
	_, err := gpx.Decode(&buf)
	require.NoError(t, err)
}
