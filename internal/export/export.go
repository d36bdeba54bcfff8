// Package export writes sealed track segments to GPX files.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/gps-recorder/internal/fsutil"
	"github.com/banshee-data/gps-recorder/internal/gpx"
	"github.com/banshee-data/gps-recorder/internal/monitoring"
	"github.com/banshee-data/gps-recorder/internal/timeutil"
	"github.com/banshee-data/gps-recorder/internal/track"
)

// Mode selects how exports map onto files.
type Mode string

const (
	// ModePerFlush writes a new file for every export.
	ModePerFlush Mode = "per_flush"
	// ModePerProcess writes one file per process, adding a track segment
	// on every export.
	ModePerProcess Mode = "per_process"
)

const (
	DefaultPrefix  = "track"
	DefaultCreator = "gps-recorder"

	// filenameLayout keeps names sortable and free of ':' for FAT media.
	filenameLayout = "2006-01-02T150405"
	filePerm       = 0o644
)

// ParseMode validates a configured mode. The empty string selects
// ModePerFlush.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePerFlush, "":
		return ModePerFlush, nil
	case ModePerProcess:
		return ModePerProcess, nil
	default:
		return "", fmt.Errorf("unknown export mode %q", s)
	}
}

type Options struct {
	Dir       string
	Prefix    string
	Mode      Mode
	Creator   string
	SessionID string
}

// Exporter is safe for concurrent use.
type Exporter struct {
	fs    fsutil.FileSystem
	clock timeutil.Clock
	opts  Options

	mu sync.Mutex
	// per-process state
	current string
	doc     *gpx.Document
	exports int
}

func New(fs fsutil.FileSystem, clock timeutil.Clock, opts Options) *Exporter {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Mode == "" {
		opts.Mode = ModePerFlush
	}
	if opts.Creator == "" {
		opts.Creator = DefaultCreator
	}
	return &Exporter{fs: fs, clock: clock, opts: opts}
}

// Export writes seg and returns the path written. An empty segment writes
// nothing and returns "". A failed write drops the segment.
func (e *Exporter) Export(seg track.Segment) (string, error) {
	if seg.Len() == 0 {
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.fs.MkdirAll(e.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir %s: %w", e.opts.Dir, err)
	}

	var (
		path string
		doc  *gpx.Document
	)
	switch e.opts.Mode {
	case ModePerProcess:
		if e.doc == nil {
			e.current = e.nextPath()
			e.doc = e.Document()
		}
		path = e.current
		doc = e.doc
		doc.Tracks[0].Segments = append(doc.Tracks[0].Segments, gpx.SegmentFromFixes(seg.Points()))
	default:
		path = e.nextPath()
		doc = e.Document(seg)
	}

	if err := e.write(path, doc); err != nil {
		if e.opts.Mode == ModePerProcess {
			segs := e.doc.Tracks[0].Segments
			e.doc.Tracks[0].Segments = segs[:len(segs)-1]
		}
		return "", err
	}
	e.exports++
	monitoring.Logf("export: wrote %d points to %s", seg.Len(), path)
	return path, nil
}

// Exports returns the number of successful exports.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}

// Document builds a single-track GPX document holding segs.
func (e *Exporter) Document(segs ...track.Segment) *gpx.Document {
	now := e.clock.Now().UTC()
	doc := gpx.New(e.opts.Creator)
	doc.Metadata = &gpx.Metadata{Name: e.opts.Prefix, Time: &now}
	if e.opts.SessionID != "" {
		doc.Metadata.Desc = "session " + e.opts.SessionID
	}
	trk := gpx.Track{Name: e.opts.Prefix}
	for _, s := range segs {
		trk.Segments = append(trk.Segments, gpx.SegmentFromFixes(s.Points()))
	}
	doc.Tracks = []gpx.Track{trk}
	return doc
}

// Render writes segs as a GPX document to w.
func (e *Exporter) Render(w io.Writer, segs ...track.Segment) error {
	return gpx.Encode(w, e.Document(segs...))
}

func (e *Exporter) write(path string, doc *gpx.Document) error {
	var buf bytes.Buffer
	if err := gpx.Encode(&buf, doc); err != nil {
		return err
	}
	if err := e.fs.WriteFile(path, buf.Bytes(), os.FileMode(filePerm)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// nextPath returns an unused name for the current time, adding -1, -2, ...
// when several exports land in the same second.
func (e *Exporter) nextPath() string {
	base := fmt.Sprintf("%s-%s", e.opts.Prefix, e.clock.Now().UTC().Format(filenameLayout))
	path := filepath.Join(e.opts.Dir, base+".gpx")
	for n := 1; e.fs.Exists(path); n++ {
		path = filepath.Join(e.opts.Dir, fmt.Sprintf("%s-%d.gpx", base, n))
	}
	return path
}
