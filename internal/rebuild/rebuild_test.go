package rebuild

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gps-recorder/internal/db"
	"github.com/banshee-data/gps-recorder/internal/export"
	"github.com/banshee-data/gps-recorder/internal/fsutil"
	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/gpx"
	"github.com/banshee-data/gps-recorder/internal/testutil"
	"github.com/banshee-data/gps-recorder/internal/timeutil"
	"github.com/banshee-data/gps-recorder/internal/track"
)

func setup(t *testing.T) (*db.DB, *fsutil.MemoryFileSystem, *timeutil.MockClock, *Rebuilder) {
	t.Helper()
	d, err := db.NewDB(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	fs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(testutil.Epoch)
	exp := export.New(fs, clock, export.Options{Dir: "out", Prefix: "rebuild"})
	return d, fs, clock, New(d, exp)
}

func exported(t *testing.T, fs *fsutil.MemoryFileSystem, path string) []gps.Fix {
	t.Helper()
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	doc, err := gpx.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, doc.Tracks, 1)
	require.Len(t, doc.Tracks[0].Segments, 1)
	fixes, err := doc.Fixes()
	require.NoError(t, err)
	return fixes
}

func TestRebuildIsIdempotent(t *testing.T) {
	d, fs, clock, r := setup(t)
	ctx := context.Background()

	want := testutil.Fixes(25, time.Second)
	// duplicates are kept: the rebuild applies no filtering
	want = append(want, want[24])
	for _, f := range want {
		_, err := d.Append(ctx, f)
		require.NoError(t, err)
	}

	first, err := r.Run(ctx)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := r.Run(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	a := exported(t, fs, first)
	b := exported(t, fs, second)
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("rebuild mismatch (-log +gpx):\n%s", diff)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("second rebuild differs (-first +second):\n%s", diff)
	}
}

func TestRebuildEmptyLogWritesNothing(t *testing.T) {
	_, fs, _, r := setup(t)

	path, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, fs.Files(""))
}

func TestRebuildFailsOnCorruptRecord(t *testing.T) {
	d, fs, _, r := setup(t)
	ctx := context.Background()

	for _, f := range testutil.Fixes(2, time.Second) {
		_, err := d.Append(ctx, f)
		require.NoError(t, err)
	}
	id, err := d.AppendPayload(ctx, `{"lat":`)
	require.NoError(t, err)
	_, err = d.Append(ctx, testutil.Fix(1, 1, 0))
	require.NoError(t, err)

	path, err := r.Run(ctx)
	require.Error(t, err)
	assert.Empty(t, path)
	assert.Contains(t, err.Error(), "record 3")
	assert.EqualValues(t, 3, id)
	assert.Empty(t, fs.Files(""))
}

func TestRebuildRejectsInvalidFix(t *testing.T) {
	d, _, _, r := setup(t)
	ctx := context.Background()

	_, err := d.AppendPayload(ctx, `{"time":"2026-03-14T09:26:53Z","lat":91,"lon":0,"fix":"3d"}`)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gps.ErrInvalidFix))
	assert.Contains(t, err.Error(), "record 1")
}

type failingExporter struct{}

func (failingExporter) Export(track.Segment) (string, error) {
	return "", errors.New("read-only file system")
}

func TestRebuildExportFailure(t *testing.T) {
	d, _, _, _ := setup(t)
	ctx := context.Background()
	_, err := d.Append(ctx, testutil.Fix(1, 1, 0))
	require.NoError(t, err)

	_, err = New(d, failingExporter{}).Run(ctx)
	assert.ErrorContains(t, err, "read-only")
}
