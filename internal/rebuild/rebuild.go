// Package rebuild regenerates a track export from the durable fix log.
package rebuild

import (
	"context"
	"log"

	"github.com/banshee-data/gps-recorder/internal/db"
	"github.com/banshee-data/gps-recorder/internal/track"
)

// Log is the read side of the durable fix log.
type Log interface {
	Scan(ctx context.Context, fn func(db.Record) error) error
}

// Exporter writes the rebuilt segment.
type Exporter interface {
	Export(track.Segment) (string, error)
}

type Rebuilder struct {
	log      Log
	exporter Exporter
}

func New(l Log, exporter Exporter) *Rebuilder {
	return &Rebuilder{log: l, exporter: exporter}
}

// Run decodes every record in id order into one segment and exports it.
// No filtering or sealing is applied. The first record that fails to decode
// aborts the rebuild with an error naming its id. An empty log writes
// nothing and returns "".
func (r *Rebuilder) Run(ctx context.Context) (string, error) {
	seg := track.NewSegment()
	err := r.log.Scan(ctx, func(rec db.Record) error {
		f, err := rec.Decode()
		if err != nil {
			return err
		}
		seg.Append(f)
		return nil
	})
	if err != nil {
		return "", err
	}
	if seg.Len() == 0 {
		log.Printf("rebuild: log is empty, nothing to export")
		return "", nil
	}
	path, err := r.exporter.Export(seg)
	if err != nil {
		return "", err
	}
	log.Printf("rebuild: exported %d points to %s", seg.Len(), path)
	return path, nil
}
