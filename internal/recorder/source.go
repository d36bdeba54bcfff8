package recorder

import (
	"errors"
	"time"

	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/timeutil"
)

// DefaultReconnectInterval paces NoConnection reports once the line feed has
// gone away.
const DefaultReconnectInterval = 5 * time.Second

var errFeedClosed = errors.New("receiver line feed closed")

// Source yields decoded sentences. Next blocks until a sentence is
// available or stop is closed, in which case it returns false.
type Source interface {
	Next(stop <-chan struct{}) (gps.Sentence, bool)
}

// LineSource decodes lines from a serial mux subscription.
type LineSource struct {
	lines    <-chan string
	decoder  gps.Decoder
	clock    timeutil.Clock
	interval time.Duration
	closed   bool
}

// NewLineSource wraps a subscription channel. interval paces NoConnection
// sentences after the channel closes; 0 selects the default.
func NewLineSource(lines <-chan string, clock timeutil.Clock, interval time.Duration) *LineSource {
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &LineSource{lines: lines, clock: clock, interval: interval}
}

func (s *LineSource) Next(stop <-chan struct{}) (gps.Sentence, bool) {
	for {
		if s.closed {
			select {
			case <-stop:
				return nil, false
			case <-s.clock.After(s.interval):
				return gps.NoConnection{Err: errFeedClosed}, true
			}
		}

		select {
		case <-stop:
			return nil, false
		case line, ok := <-s.lines:
			if !ok {
				s.closed = true
				return gps.NoConnection{Err: errFeedClosed}, true
			}
			if sentence, ok := s.decoder.Decode(line); ok {
				return sentence, true
			}
		}
	}
}
