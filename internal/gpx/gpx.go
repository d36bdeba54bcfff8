// Package gpx reads and writes GPX 1.1 track files.
package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/gps-recorder/internal/gps"
)

const (
	Namespace = "http://www.topografix.com/GPX/1/1"
	Version   = "1.1"
)

// Document is the gpx root element.
type Document struct {
	XMLName  xml.Name  `xml:"gpx"`
	Xmlns    string    `xml:"xmlns,attr,omitempty"`
	Version  string    `xml:"version,attr"`
	Creator  string    `xml:"creator,attr"`
	Metadata *Metadata `xml:"metadata,omitempty"`
	Tracks   []Track   `xml:"trk"`
}

type Metadata struct {
	Name string     `xml:"name,omitempty"`
	Desc string     `xml:"desc,omitempty"`
	Time *time.Time `xml:"time,omitempty"`
}

type Track struct {
	Name     string    `xml:"name,omitempty"`
	Segments []Segment `xml:"trkseg"`
}

type Segment struct {
	Points []Point `xml:"trkpt"`
}

// Point is a trkpt. Field order follows the GPX 1.1 wptType sequence.
type Point struct {
	Latitude   float64     `xml:"lat,attr"`
	Longitude  float64     `xml:"lon,attr"`
	Elevation  *float64    `xml:"ele,omitempty"`
	Time       time.Time   `xml:"time"`
	Source     string      `xml:"src,omitempty"`
	Fix        string      `xml:"fix,omitempty"`
	Satellites *int        `xml:"sat,omitempty"`
	HDOP       *float64    `xml:"hdop,omitempty"`
	VDOP       *float64    `xml:"vdop,omitempty"`
	PDOP       *float64    `xml:"pdop,omitempty"`
	Extensions *Extensions `xml:"extensions,omitempty"`
}

// Extensions carries data GPX 1.1 has no element for.
type Extensions struct {
	// Speed in m/s.
	Speed *float64 `xml:"speed,omitempty"`
}

// New returns an empty document with the GPX 1.1 namespace set.
func New(creator string) *Document {
	return &Document{Xmlns: Namespace, Version: Version, Creator: creator}
}

// PointFromFix converts a fix to a track point.
func PointFromFix(f gps.Fix) Point {
	sat := f.Satellites
	p := Point{
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
		Elevation:  f.Elevation,
		Time:       f.Time.UTC(),
		Source:     f.Source,
		Satellites: &sat,
		HDOP:       f.HDOP,
		VDOP:       f.VDOP,
		PDOP:       f.PDOP,
	}
	if f.Quality != gps.FixNone {
		p.Fix = f.Quality.String()
	}
	if f.Speed != nil {
		p.Extensions = &Extensions{Speed: f.Speed}
	}
	return p
}

// ToFix converts a track point back to a fix.
func (p Point) ToFix() (gps.Fix, error) {
	q, err := gps.ParseQuality(p.Fix)
	if err != nil {
		return gps.Fix{}, err
	}
	f := gps.Fix{
		Time:      p.Time.UTC(),
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Elevation: p.Elevation,
		Quality:   q,
		HDOP:      p.HDOP,
		VDOP:      p.VDOP,
		PDOP:      p.PDOP,
		Source:    p.Source,
	}
	if p.Satellites != nil {
		f.Satellites = *p.Satellites
	}
	if p.Extensions != nil {
		f.Speed = p.Extensions.Speed
	}
	return f, nil
}

// SegmentFromFixes converts fixes, in order, to a track segment.
func SegmentFromFixes(fixes []gps.Fix) Segment {
	seg := Segment{Points: make([]Point, 0, len(fixes))}
	for _, f := range fixes {
		seg.Points = append(seg.Points, PointFromFix(f))
	}
	return seg
}

// Fixes returns every point of every track segment in document order.
func (d *Document) Fixes() ([]gps.Fix, error) {
	var out []gps.Fix
	for _, trk := range d.Tracks {
		for _, seg := range trk.Segments {
			for i, p := range seg.Points {
				f, err := p.ToFix()
				if err != nil {
					return nil, fmt.Errorf("trkpt %d: %w", i, err)
				}
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// Encode writes d as an indented XML document.
func Encode(w io.Writer, d *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode parses a GPX document.
func Decode(r io.Reader) (*Document, error) {
	var d Document
	if err := xml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode gpx: %w", err)
	}
	return &d, nil
}
