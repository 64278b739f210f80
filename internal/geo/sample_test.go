package geo

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name    string
		sample  Sample
		wantErr error
	}{
		{
			name:   "minimal valid",
			sample: Sample{Latitude: 52.52, Longitude: 13.405, RecordedAt: now},
		},
		{
			name: "all metrics valid",
			sample: Sample{
				Latitude: -33.87, Longitude: 151.21, RecordedAt: now,
				AccuracyMeters: Float(4.5), SpeedKMH: Float(41.5),
				HeadingDegrees: Float(84.4), BatteryLevel: Float(76),
			},
		},
		{
			name:   "latitude at boundary",
			sample: Sample{Latitude: 90, Longitude: -180, RecordedAt: now},
		},
		{
			name:    "latitude out of range",
			sample:  Sample{Latitude: 90.001, Longitude: 0, RecordedAt: now},
			wantErr: ErrInvalidLatitude,
		},
		{
			name:    "latitude NaN",
			sample:  Sample{Latitude: math.NaN(), Longitude: 0, RecordedAt: now},
			wantErr: ErrInvalidLatitude,
		},
		{
			name:    "longitude out of range",
			sample:  Sample{Latitude: 0, Longitude: -180.5, RecordedAt: now},
			wantErr: ErrInvalidLongitude,
		},
		{
			name:    "negative accuracy",
			sample:  Sample{Latitude: 0, Longitude: 0, RecordedAt: now, AccuracyMeters: Float(-1)},
			wantErr: ErrNegativeAccuracy,
		},
		{
			name:    "negative speed",
			sample:  Sample{Latitude: 0, Longitude: 0, RecordedAt: now, SpeedKMH: Float(-0.1)},
			wantErr: ErrNegativeSpeed,
		},
		{
			name:   "heading 360 allowed",
			sample: Sample{Latitude: 0, Longitude: 0, RecordedAt: now, HeadingDegrees: Float(360)},
		},
		{
			name:    "heading over 360",
			sample:  Sample{Latitude: 0, Longitude: 0, RecordedAt: now, HeadingDegrees: Float(360.1)},
			wantErr: ErrInvalidHeading,
		},
		{
			name:    "battery over 100",
			sample:  Sample{Latitude: 0, Longitude: 0, RecordedAt: now, BatteryLevel: Float(101)},
			wantErr: ErrInvalidBattery,
		},
		{
			name:    "zero timestamp",
			sample:  Sample{Latitude: 0, Longitude: 0},
			wantErr: ErrZeroTimestamp,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.sample.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewSampleStampsZeroTime(t *testing.T) {
	s, err := NewSample(48.1173, 11.5167, time.Time{})
	if err != nil {
		t.Fatalf("new sample: %v", err)
	}
	if s.RecordedAt.IsZero() {
		t.Fatal("expected RecordedAt to be stamped")
	}
}

func TestNewSampleRejectsInvalid(t *testing.T) {
	if _, err := NewSample(91, 0, time.Now()); !errors.Is(err, ErrInvalidLatitude) {
		t.Fatalf("got %v, want ErrInvalidLatitude", err)
	}
}
