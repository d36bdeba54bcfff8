// Package shutdown drains the open track segment exactly once when the
// process is asked to stop.
package shutdown

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/gps-recorder/internal/track"
)

// State of the coordinator.
type State int32

const (
	Running State = iota
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Exporter is the part of export.Exporter the coordinator needs.
type Exporter interface {
	Export(track.Segment) (string, error)
}

// Coordinator owns the stop channel of the ingestion loop.
type Coordinator struct {
	buf      *track.Buffer
	exporter Exporter

	triggered atomic.Bool
	state     atomic.Int32
	stop      chan struct{}
	done      chan struct{}
	reason    string
	mu        sync.Mutex
}

func New(buf *track.Buffer, exporter Exporter) *Coordinator {
	return &Coordinator{
		buf:      buf,
		exporter: exporter,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Stop is closed once the drain has completed; the ingestion loop polls it.
func (c *Coordinator) Stop() <-chan struct{} {
	return c.stop
}

// Stopped is closed when the coordinator reaches the Stopped state.
func (c *Coordinator) Stopped() <-chan struct{} {
	return c.done
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Reason returns what triggered the shutdown, or "" while running.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Trigger drains the open segment to the exporter and closes the stop
// channel. Only the first call does anything; it reports whether this call
// won.
func (c *Coordinator) Trigger(reason string) bool {
	if !c.triggered.CompareAndSwap(false, true) {
		return false
	}
	c.mu.Lock()
	c.reason = reason
	c.mu.Unlock()
	c.state.Store(int32(Draining))
	log.Printf("shutdown: %s, draining open segment", reason)

	c.buf.With(func(open *track.Segment) {
		if open.Len() > 0 {
			seg := open.Seal()
			path, err := c.exporter.Export(seg)
			if err != nil {
				log.Printf("shutdown: export failed, %d points dropped: %v", seg.Len(), err)
			} else {
				log.Printf("shutdown: exported %d points to %s", seg.Len(), path)
			}
		}
		close(c.stop)
	})

	c.state.Store(int32(Stopped))
	close(c.done)
	return true
}

// Notify calls Trigger from its own goroutine when one of signals arrives
// or ctx is cancelled. Repeated signals are absorbed by the latch.
func (c *Coordinator) Notify(ctx context.Context, signals ...os.Signal) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, signals...)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case sig := <-ch:
				c.Trigger(sig.String())
			case <-ctx.Done():
				c.Trigger("context cancelled")
				return
			case <-c.done:
				return
			}
		}
	}()
}
