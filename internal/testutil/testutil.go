// Package testutil provides shared test utilities and fixtures: NMEA line
// builders with valid checksums and fix factories.
package testutil

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/gps-recorder/internal/gps"
)

// Epoch is the reference instant used by fixtures.
var Epoch = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NMEA frames body ("GPGGA,...") as a sentence with a valid checksum.
func NMEA(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, cs)
}

// GGA builds a GGA sentence reporting a GPS fix at lat/lon with the given
// satellite count and a 545.4 m altitude.
func GGA(lat, lon float64, satellites int) string {
	latField, ns := nmeaCoord(lat, 2, "N", "S")
	lonField, ew := nmeaCoord(lon, 3, "E", "W")
	return NMEA(fmt.Sprintf("GPGGA,092653.000,%s,%s,%s,%s,1,%02d,0.9,545.4,M,46.9,M,,",
		latField, ns, lonField, ew, satellites))
}

// GGANoFix builds a GGA sentence with fix quality 0.
func GGANoFix() string {
	return NMEA("GPGGA,092653.000,4807.0380,N,01131.0000,E,0,00,,,M,,M,,")
}

// GSA builds a GSA sentence with the given fix type (1, 2 or 3) and DOPs.
func GSA(fixType int, pdop, hdop, vdop float64) string {
	return NMEA(fmt.Sprintf("GPGSA,A,%d,04,05,,09,12,,,24,,,,,%.1f,%.1f,%.1f", fixType, pdop, hdop, vdop))
}

// VTG builds a VTG sentence reporting speed in km/h.
func VTG(kph float64) string {
	return NMEA(fmt.Sprintf("GPVTG,054.7,T,034.4,M,%05.1f,N,%05.1f,K", kph/1.852, kph))
}

// GSV builds a single GSV sentence with four satellites.
func GSV() string {
	return NMEA("GPGSV,2,1,08,01,40,083,46,02,17,308,41,12,07,344,39,14,22,228,45")
}

func nmeaCoord(v float64, degWidth int, pos, neg string) (string, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	minutes := (v - deg) * 60
	return fmt.Sprintf("%0*d%07.4f", degWidth, int(deg), minutes), hemi
}

// Fix returns a valid 3D fix at lat/lon, timestamped offset after Epoch.
func Fix(lat, lon float64, offset time.Duration) gps.Fix {
	return gps.Fix{
		Time:       Epoch.Add(offset),
		Latitude:   lat,
		Longitude:  lon,
		Elevation:  gps.Float(545.4),
		Quality:    gps.Fix3D,
		Satellites: 8,
		Source:     gps.DefaultSource,
	}
}

// Fixes returns n fixes along a meridian, step apart in time, each about
// 11 m north of the previous one.
func Fixes(n int, step time.Duration) []gps.Fix {
	out := make([]gps.Fix, n)
	for i := range out {
		out[i] = Fix(48.1173+float64(i)*0.0001, 11.5166, time.Duration(i)*step)
	}
	return out
}
