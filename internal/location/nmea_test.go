package location

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

const (
	rmcValid    = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	ggaValid    = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	rmcVoid     = "$GPRMC,123519,V,,,,,,,230394,,*33"
	rmcSouthern = "$GNRMC,081836,A,3751.65,S,14507.36,E,000.0,360.0,130998,011.3,E*7C"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestReadAssemblesFixFromRMCAndGGA(t *testing.T) {
	p := newNMEAFromReader(strings.NewReader(rmcValid + "\r\n" + ggaValid + "\r\n"))

	s, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !almostEqual(s.Latitude, 48.1173) {
		t.Fatalf("lat = %v, want 48.1173", s.Latitude)
	}
	if !almostEqual(s.Longitude, 11.5166667) {
		t.Fatalf("lng = %v, want 11.5166667", s.Longitude)
	}
	if s.SpeedKMH == nil || !almostEqual(*s.SpeedKMH, 41.4848) {
		t.Fatalf("speed = %v, want 41.4848 km/h", s.SpeedKMH)
	}
	if s.HeadingDegrees == nil || !almostEqual(*s.HeadingDegrees, 84.4) {
		t.Fatalf("heading = %v, want 84.4", s.HeadingDegrees)
	}
	if s.AccuracyMeters == nil || !almostEqual(*s.AccuracyMeters, 4.5) {
		t.Fatalf("accuracy = %v, want 4.5 (HDOP 0.9 * 5)", s.AccuracyMeters)
	}
	if s.RecordedAt.IsZero() {
		t.Fatalf("sample must be timestamped")
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("assembled sample invalid: %v", err)
	}
}

func TestReadRMCOnlyStillProducesFix(t *testing.T) {
	p := newNMEAFromReader(strings.NewReader(rmcSouthern + "\r\n"))

	s, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !almostEqual(s.Latitude, -37.8608333) {
		t.Fatalf("southern lat = %v, want -37.8608333", s.Latitude)
	}
	if !almostEqual(s.Longitude, 145.1226667) {
		t.Fatalf("eastern lng = %v, want 145.1226667", s.Longitude)
	}
	if s.AccuracyMeters != nil {
		t.Fatalf("no GGA seen, accuracy must be unset")
	}
}

func TestReadVoidFixReturnsNoFix(t *testing.T) {
	p := newNMEAFromReader(strings.NewReader(rmcVoid + "\r\n"))

	_, err := p.Read(context.Background())
	if !errors.Is(err, ErrNoFix) {
		t.Fatalf("expected ErrNoFix for void sentence, got %v", err)
	}
}

func TestReadSkipsCorruptChecksum(t *testing.T) {
	corrupt := "$GPRMC,123519,A,9999.999,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	p := newNMEAFromReader(strings.NewReader(corrupt + "\r\n" + rmcValid + "\r\n"))

	s, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !almostEqual(s.Latitude, 48.1173) {
		t.Fatalf("corrupt sentence was not skipped: lat = %v", s.Latitude)
	}
}

func TestReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newNMEAFromReader(strings.NewReader(rmcValid + "\r\n"))
	if _, err := p.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestReadUnconnected(t *testing.T) {
	p := NewNMEA("", 0)
	if p.Supported() {
		t.Fatalf("empty port path must be unsupported")
	}
	if _, err := p.Read(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestChecksumValidation(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{rmcValid, true},
		{ggaValid, true},
		{"$GPRMC,123519,A*00", false},
		{"$GPRMC,no,checksum", false},
		{"$GPRMC,short*", false},
	}
	for _, tc := range cases {
		if got := validChecksum(tc.line); got != tc.want {
			t.Fatalf("validChecksum(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestParseCoord(t *testing.T) {
	if got := parseCoord("4807.038", "N"); !almostEqual(got, 48.1173) {
		t.Fatalf("N: got %v", got)
	}
	if got := parseCoord("4807.038", "S"); !almostEqual(got, -48.1173) {
		t.Fatalf("S: got %v", got)
	}
	if got := parseCoord("", "N"); got != 0 {
		t.Fatalf("empty raw: got %v", got)
	}
	if got := parseCoord("garbage", "E"); got != 0 {
		t.Fatalf("garbage raw: got %v", got)
	}
}
