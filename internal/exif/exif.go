// Package exif extracts the coach-relevant subset of camera metadata
// from JPEG images. Full EXIF carries over a hundred fields; coaching
// only needs the exposure triangle and lens info.
package exif

import (
	"fmt"
	"io"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// Metadata is the photography-relevant EXIF subset. Pointer fields are
// nil when the image does not carry that tag.
type Metadata struct {
	Model        string   `json:"model,omitempty"`
	FNumber      *float64 `json:"f_number,omitempty"`
	ISO          *int     `json:"iso,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
	ExposureTime *float64 `json:"exposure_time,omitempty"` // seconds
}

// Empty reports whether no field was extracted.
func (m Metadata) Empty() bool {
	return m.Model == "" && m.FNumber == nil && m.ISO == nil &&
		m.FocalLength == nil && m.ExposureTime == nil
}

// Summary renders the extracted settings as a short human-readable
// line, e.g. "Canon EOS R6, f/2.8, ISO 400, 50mm, 1/250s".
func (m Metadata) Summary() string {
	var parts []string
	if m.Model != "" {
		parts = append(parts, m.Model)
	}
	if m.FNumber != nil {
		parts = append(parts, fmt.Sprintf("f/%.1f", *m.FNumber))
	}
	if m.ISO != nil {
		parts = append(parts, fmt.Sprintf("ISO %d", *m.ISO))
	}
	if m.FocalLength != nil {
		parts = append(parts, fmt.Sprintf("%.0fmm", *m.FocalLength))
	}
	if m.ExposureTime != nil {
		parts = append(parts, formatExposure(*m.ExposureTime))
	}
	if len(parts) == 0 {
		return "no camera metadata"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// formatExposure renders seconds as the shutter-speed notation
// photographers expect: fractions below one second, plain seconds above.
func formatExposure(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	if seconds < 1 {
		return fmt.Sprintf("1/%.0fs", 1/seconds)
	}
	return fmt.Sprintf("%.1fs", seconds)
}

// Extract reads EXIF metadata from a JPEG stream. Missing tags stay
// nil; a stream with no EXIF block at all returns an error.
func Extract(r io.Reader) (Metadata, error) {
	x, err := goexif.Decode(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("decoding exif: %w", err)
	}

	var m Metadata

	if tag, err := x.Get(goexif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			m.Model = s
		}
	}
	m.FNumber = ratField(x, goexif.FNumber)
	m.FocalLength = ratField(x, goexif.FocalLength)
	m.ExposureTime = ratField(x, goexif.ExposureTime)

	if tag, err := x.Get(goexif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			m.ISO = &v
		}
	}

	return m, nil
}

// ratField reads a rational tag and normalizes it to a float, the way
// f-numbers (28/10 -> 2.8) and focal lengths (50/1 -> 50) are stored.
func ratField(x *goexif.Exif, name goexif.FieldName) *float64 {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}
