// Package gps turns NMEA lines from the receiver into typed sentences and
// normalises position sentences into fixes.
package gps

import "fmt"

// Sentence is one decoded receiver event. The set of variants is closed:
// PositionFix, DOPReading, SatelliteView, GroundSpeed, InvalidSentence,
// InvalidBytes and NoConnection.
type Sentence interface {
	sentence()
}

// PositionFix carries a GGA fix report.
type PositionFix struct {
	// UTC is the receiver time of day, hhmmss.sss, as reported.
	UTC        string
	HasFix     bool
	Latitude   float64
	Longitude  float64
	Satellites int
	// Altitude is the height above mean sea level in metres, nil when the
	// receiver left the field empty.
	Altitude *float64
}

// DOPReading carries a GSA dilution-of-precision report.
type DOPReading struct {
	FixType Quality
	PDOP    float64
	HDOP    float64
	VDOP    float64
}

// SatelliteView carries one GSV sentence.
type SatelliteView struct {
	InView int
	// SNR holds the signal strength in dB of each satellite in this sentence.
	SNR []int64
}

// GroundSpeed carries a VTG speed report.
type GroundSpeed struct {
	KPH float64
}

// InvalidSentence is a line that looked like NMEA but failed to parse.
type InvalidSentence struct {
	Line string
	Err  error
}

// InvalidBytes is a line that is not printable ASCII, usually a baud rate
// mismatch.
type InvalidBytes struct {
	Line string
}

// NoConnection reports that the receiver stopped delivering lines.
type NoConnection struct {
	Err error
}

func (PositionFix) sentence()     {}
func (DOPReading) sentence()      {}
func (SatelliteView) sentence()   {}
func (GroundSpeed) sentence()     {}
func (InvalidSentence) sentence() {}
func (InvalidBytes) sentence()    {}
func (NoConnection) sentence()    {}

func (s InvalidSentence) Error() string {
	return fmt.Sprintf("invalid sentence %q: %v", s.Line, s.Err)
}

func (s InvalidBytes) Error() string {
	return fmt.Sprintf("invalid bytes %q", s.Line)
}

func (s NoConnection) Error() string {
	if s.Err == nil {
		return "no connection with receiver"
	}
	return fmt.Sprintf("no connection with receiver: %v", s.Err)
}
