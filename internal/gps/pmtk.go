package gps

import (
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// PMTK220 fix interval limits of the MTK3339, in milliseconds.
const (
	DefaultUpdateRateMS = 500
	MinUpdateRateMS     = 100
	MaxUpdateRateMS     = 10000
)

// OutputMask selects how often (in position fixes) each sentence is emitted
// by an MTK receiver; 0 disables the sentence.
type OutputMask struct {
	GLL int
	RMC int
	VTG int
	GGA int
	GSA int
	GSV int
	// CHN is the PMTKCHN channel status interval.
	CHN int
}

// DefaultOutputMask enables every sentence the recorder listens to at
// every fix.
var DefaultOutputMask = OutputMask{GLL: 1, RMC: 1, VTG: 1, GGA: 1, GSA: 1, GSV: 1, CHN: 1}

// PMTKCommand frames a PMTK body as a checksummed NMEA sentence.
func PMTKCommand(body string) string {
	return "$" + body + "*" + nmea.Checksum(body)
}

// SetOutputCommand builds PMTK314 for the given mask.
func SetOutputCommand(m OutputMask) string {
	fields := []string{"PMTK314",
		fmt.Sprint(m.GLL), fmt.Sprint(m.RMC), fmt.Sprint(m.VTG),
		fmt.Sprint(m.GGA), fmt.Sprint(m.GSA), fmt.Sprint(m.GSV),
	}
	// reserved fields 6..17
	for i := 0; i < 12; i++ {
		fields = append(fields, "0")
	}
	fields = append(fields, fmt.Sprint(m.CHN))
	return PMTKCommand(strings.Join(fields, ","))
}

// SetUpdateRateCommand builds PMTK220 for a fix interval in milliseconds.
func SetUpdateRateCommand(intervalMS int) string {
	return PMTKCommand(fmt.Sprintf("PMTK220,%d", intervalMS))
}

// InitCommands returns the commands sent to the receiver at start.
func InitCommands(mask OutputMask, intervalMS int) []string {
	return []string{
		SetOutputCommand(mask),
		SetUpdateRateCommand(intervalMS),
	}
}
