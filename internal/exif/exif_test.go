package exif

import (
	"bytes"
	"testing"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		m    Metadata
		want string
	}{
		{
			name: "full metadata",
			m: Metadata{
				Model:        "Canon EOS R6",
				FNumber:      fptr(2.8),
				ISO:          iptr(400),
				FocalLength:  fptr(50),
				ExposureTime: fptr(0.004),
			},
			want: "Canon EOS R6, f/2.8, ISO 400, 50mm, 1/250s",
		},
		{
			name: "partial metadata",
			m:    Metadata{FNumber: fptr(1.8), ISO: iptr(3200)},
			want: "f/1.8, ISO 3200",
		},
		{
			name: "long exposure",
			m:    Metadata{ExposureTime: fptr(2.5)},
			want: "2.5s",
		},
		{
			name: "empty",
			m:    Metadata{},
			want: "no camera metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	if !(Metadata{}).Empty() {
		t.Error("zero metadata should be empty")
	}
	if (Metadata{Model: "X100V"}).Empty() {
		t.Error("metadata with model should not be empty")
	}
	if (Metadata{ISO: iptr(100)}).Empty() {
		t.Error("metadata with ISO should not be empty")
	}
}

func TestFormatExposure(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0.004, "1/250s"},
		{0.0166666, "1/60s"},
		{0.5, "1/2s"},
		{1, "1.0s"},
		{30, "30.0s"},
		{0, "0s"},
	}
	for _, tt := range tests {
		if got := formatExposure(tt.seconds); got != tt.want {
			t.Errorf("formatExposure(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestExtract_NotAnImage(t *testing.T) {
	_, err := Extract(bytes.NewReader([]byte("not a jpeg")))
	if err == nil {
		t.Fatal("expected error for non-image data")
	}
}

func TestExtract_EmptyReader(t *testing.T) {
	_, err := Extract(bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected error for empty input")
	}
}
