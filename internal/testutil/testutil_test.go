package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAssertStatusCode(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusAccepted)
	AssertStatusCode(t, rec.Code, http.StatusAccepted)
}

func TestNMEAChecksum(t *testing.T) {
	// Reference sentences with published checksums.
	tests := map[string]string{
		"PMTK220,500": "$PMTK220,500*2B",
		"GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,": "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
	}
	for body, want := range tests {
		if got := NMEA(body); got != want {
			t.Errorf("NMEA(%q) = %q, want %q", body, got, want)
		}
	}
}

func TestGGACoordinates(t *testing.T) {
	got := GGA(48.1173, -11.5166, 8)
	if !strings.Contains(got, ",4807.0380,N,01130.9960,W,1,08,") {
		t.Errorf("unexpected GGA encoding %q", got)
	}
}

func TestFixes(t *testing.T) {
	fixes := Fixes(3, time.Second)
	if len(fixes) != 3 {
		t.Fatalf("expected 3 fixes, got %d", len(fixes))
	}
	for i, f := range fixes {
		if err := f.Validate(); err != nil {
			t.Errorf("fix %d invalid: %v", i, err)
		}
		if want := Epoch.Add(time.Duration(i) * time.Second); !f.Time.Equal(want) {
			t.Errorf("fix %d time = %v, want %v", i, f.Time, want)
		}
	}
}
