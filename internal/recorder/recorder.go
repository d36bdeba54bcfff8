// Package recorder runs the ingestion loop: it turns receiver sentences
// into fixes, filters them, logs every retained fix and hands sealed
// segments to the exporter.
package recorder

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/monitoring"
	"github.com/banshee-data/gps-recorder/internal/timeutil"
	"github.com/banshee-data/gps-recorder/internal/track"
)

// Log is the durable fix log.
type Log interface {
	Append(ctx context.Context, f gps.Fix) (int64, error)
}

// Exporter writes sealed segments.
type Exporter interface {
	Export(track.Segment) (string, error)
}

// Publisher receives every retained fix after it has been logged.
type Publisher interface {
	Publish(gps.Fix) error
}

type Options struct {
	Clock     timeutil.Clock
	Policy    track.Policy
	Normalize gps.NormalizerOptions
	// FlushInterval seals the open segment once it spans more than this.
	FlushInterval time.Duration
	Log           Log
	Exporter      Exporter
	// Buffer is shared with the shutdown coordinator.
	Buffer *track.Buffer
}

// Recorder is driven by a single goroutine through Handle or Run. Status
// and AddPublisher may be called from any goroutine.
type Recorder struct {
	clock    timeutil.Clock
	norm     *gps.Normalizer
	seg      *track.Segmenter
	buf      *track.Buffer
	log      Log
	exporter Exporter

	pubMu      sync.RWMutex
	publishers []Publisher

	counters counters
	lastMu   sync.RWMutex
	lastFix  *gps.Fix
	started  time.Time
}

type counters struct {
	sentences    atomic.Uint64
	noFix        atomic.Uint64
	accepted     atomic.Uint64
	rejected     atomic.Uint64
	invalid      atomic.Uint64
	disconnects  atomic.Uint64
	logErrors    atomic.Uint64
	exports      atomic.Uint64
	exportErrors atomic.Uint64
	sealed       atomic.Uint64
}

func New(opts Options) *Recorder {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Policy == nil {
		opts.Policy = track.NewDedupPolicy()
	}
	if opts.Buffer == nil {
		opts.Buffer = &track.Buffer{}
	}
	return &Recorder{
		clock:    opts.Clock,
		norm:     gps.NewNormalizer(opts.Clock, opts.Normalize),
		seg:      track.NewSegmenter(opts.Policy, opts.FlushInterval),
		buf:      opts.Buffer,
		log:      opts.Log,
		exporter: opts.Exporter,
		started:  opts.Clock.Now(),
	}
}

// Buffer returns the open segment buffer.
func (r *Recorder) Buffer() *track.Buffer {
	return r.buf
}

func (r *Recorder) AddPublisher(p Publisher) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	r.publishers = append(r.publishers, p)
}

// Handle processes one sentence.
func (r *Recorder) Handle(ctx context.Context, s gps.Sentence) {
	r.counters.sentences.Add(1)

	switch s := s.(type) {
	case gps.PositionFix:
		f, ok := r.norm.Normalize(s)
		if !ok {
			r.counters.noFix.Add(1)
			return
		}
		r.accept(ctx, f)
	case gps.DOPReading:
		r.norm.ObserveDOP(s)
		monitoring.Logf("gsa: fix %s pdop %.1f hdop %.1f vdop %.1f", s.FixType, s.PDOP, s.HDOP, s.VDOP)
	case gps.GroundSpeed:
		r.norm.ObserveSpeed(s)
		monitoring.Logf("vtg: %.1f km/h", s.KPH)
	case gps.SatelliteView:
		monitoring.Logf("gsv: %d in view, snr %v", s.InView, s.SNR)
	case gps.InvalidSentence:
		r.counters.invalid.Add(1)
		log.Printf("recorder: %v", s)
	case gps.InvalidBytes:
		r.counters.invalid.Add(1)
		log.Printf("recorder: %v (check baud rate)", s)
	case gps.NoConnection:
		r.counters.disconnects.Add(1)
		log.Printf("recorder: %v", s)
	default:
		log.Printf("recorder: unhandled sentence %T", s)
	}
}

// accept offers f to the segmenter. Sealing, export of the sealed segment,
// logging and insertion all happen under the buffer lock, so the coordinator
// never drains ahead of a sealed segment or sees a fix half accepted.
func (r *Recorder) accept(ctx context.Context, f gps.Fix) {
	var accepted bool
	r.buf.With(func(open *track.Segment) {
		v := r.seg.Offer(open, f)
		if !v.Accept {
			return
		}
		accepted = true
		if v.Seal {
			if sealed := open.Seal(); sealed.Len() > 0 {
				r.counters.sealed.Add(1)
				r.export(sealed)
			}
		}
		if r.log != nil {
			if _, err := r.log.Append(ctx, f); err != nil {
				r.counters.logErrors.Add(1)
				log.Printf("recorder: failed to log fix: %v", err)
			}
		}
		r.seg.Retain(f)
		open.Append(f)
	})

	if !accepted {
		r.counters.rejected.Add(1)
		return
	}
	r.counters.accepted.Add(1)
	r.lastMu.Lock()
	r.lastFix = &f
	r.lastMu.Unlock()

	r.pubMu.RLock()
	defer r.pubMu.RUnlock()
	for _, p := range r.publishers {
		if err := p.Publish(f); err != nil {
			monitoring.Logf("recorder: publish: %v", err)
		}
	}
}

func (r *Recorder) export(seg track.Segment) {
	if r.exporter == nil {
		return
	}
	path, err := r.exporter.Export(seg)
	if err != nil {
		r.counters.exportErrors.Add(1)
		log.Printf("recorder: export of %d points failed, segment dropped: %v", seg.Len(), err)
		return
	}
	r.counters.exports.Add(1)
	log.Printf("recorder: exported %d points to %s", seg.Len(), path)
}

// Run reads sentences from src until stop is closed. The stop channel is
// checked before every read, so at most one sentence is handled after a
// stop request.
func (r *Recorder) Run(ctx context.Context, src Source, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		s, ok := src.Next(stop)
		if !ok {
			return
		}
		r.Handle(ctx, s)
	}
}

// Status is a point-in-time view of the recorder.
type Status struct {
	Policy       string   `json:"policy"`
	Uptime       string   `json:"uptime"`
	Sentences    uint64   `json:"sentences"`
	NoFix        uint64   `json:"no_fix"`
	Accepted     uint64   `json:"accepted"`
	Rejected     uint64   `json:"rejected"`
	Invalid      uint64   `json:"invalid"`
	Disconnects  uint64   `json:"disconnects"`
	LogErrors    uint64   `json:"log_errors"`
	Sealed       uint64   `json:"sealed"`
	Exports      uint64   `json:"exports"`
	ExportErrors uint64   `json:"export_errors"`
	OpenSegment  int      `json:"open_segment"`
	LastFix      *gps.Fix `json:"last_fix,omitempty"`
}

func (r *Recorder) Status() Status {
	c := &r.counters
	st := Status{
		Policy:       r.seg.Policy().Name(),
		Uptime:       r.clock.Since(r.started).Round(time.Second).String(),
		Sentences:    c.sentences.Load(),
		NoFix:        c.noFix.Load(),
		Accepted:     c.accepted.Load(),
		Rejected:     c.rejected.Load(),
		Invalid:      c.invalid.Load(),
		Disconnects:  c.disconnects.Load(),
		LogErrors:    c.logErrors.Load(),
		Sealed:       c.sealed.Load(),
		Exports:      c.exports.Load(),
		ExportErrors: c.exportErrors.Load(),
		OpenSegment:  r.buf.Len(),
	}
	r.lastMu.RLock()
	if r.lastFix != nil {
		f := *r.lastFix
		st.LastFix = &f
	}
	r.lastMu.RUnlock()
	return st
}
