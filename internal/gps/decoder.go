package gps

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Decoder maps raw receiver lines onto Sentence variants. Sentence types
// the recorder does not use (RMC, GLL, PMTK acknowledgements) are dropped.
type Decoder struct{}

// ggaAltitudeField is the index of the MSL altitude within GGA fields.
const ggaAltitudeField = 8

// Decode decodes one line. The boolean is false when the line carries
// nothing the recorder consumes.
func (Decoder) Decode(line string) (Sentence, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	if !printableASCII(line) {
		return InvalidBytes{Line: line}, true
	}
	if !strings.HasPrefix(line, "$") {
		return InvalidSentence{Line: line, Err: errMissingStart}, true
	}
	if !wanted(SentenceType(line)) {
		return nil, false
	}

	s, err := nmea.Parse(line)
	if err != nil {
		return InvalidSentence{Line: line, Err: err}, true
	}

	switch m := s.(type) {
	case nmea.GGA:
		p := PositionFix{
			UTC:        m.Time.String(),
			HasFix:     m.FixQuality != "" && m.FixQuality != nmea.Invalid,
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			Satellites: int(m.NumSatellites),
		}
		if len(m.Fields) > ggaAltitudeField && strings.TrimSpace(m.Fields[ggaAltitudeField]) != "" {
			p.Altitude = Float(m.Altitude)
		}
		return p, true
	case nmea.GSA:
		return DOPReading{
			FixType: gsaFixType(m.FixType),
			PDOP:    m.PDOP,
			HDOP:    m.HDOP,
			VDOP:    m.VDOP,
		}, true
	case nmea.GSV:
		v := SatelliteView{InView: int(m.NumberSVsInView)}
		for _, info := range m.Info {
			v.SNR = append(v.SNR, info.SNR)
		}
		return v, true
	case nmea.VTG:
		return GroundSpeed{KPH: m.GroundSpeedKPH}, true
	default:
		return nil, false
	}
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

const errMissingStart = decodeError("nmea: sentence does not start with '$'")

const (
	SentenceUnknown = "UNKNOWN"
	SentencePMTK    = "PMTK"
)

// SentenceType returns the sentence type of a receiver line: the three
// letter NMEA type for talker sentences ("$GPGGA,..." -> "GGA"), PMTK for
// MediaTek command replies, UNKNOWN for anything else.
func SentenceType(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return SentenceUnknown
	}
	head := line[1:]
	if i := strings.IndexAny(head, ",*"); i >= 0 {
		head = head[:i]
	}
	if strings.HasPrefix(head, SentencePMTK) {
		return SentencePMTK
	}
	if len(head) != 5 {
		return SentenceUnknown
	}
	return strings.ToUpper(head[2:])
}

func wanted(kind string) bool {
	switch kind {
	case nmea.TypeGGA, nmea.TypeGSA, nmea.TypeGSV, nmea.TypeVTG:
		return true
	default:
		return false
	}
}

func gsaFixType(t string) Quality {
	switch t {
	case nmea.Fix2D:
		return Fix2D
	case nmea.Fix3D:
		return Fix3D
	default:
		return FixNone
	}
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
