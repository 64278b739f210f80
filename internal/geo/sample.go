package geo

import (
	"errors"
	"math"
	"time"
)

// Sample is a single position fix produced by the device location provider.
// Optional metrics are pointers so that "not reported" stays distinguishable
// from a genuine zero value. A Sample is immutable once created.
type Sample struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters *float64
	SpeedKMH       *float64
	HeadingDegrees *float64
	BatteryLevel   *float64
	RecordedAt     time.Time
}

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrNegativeAccuracy = errors.New("accuracy_meters cannot be negative")
	ErrNegativeSpeed    = errors.New("speed_kmh cannot be negative")
	ErrInvalidHeading   = errors.New("heading_degrees must be between 0 and 360")
	ErrInvalidBattery   = errors.New("battery_level must be between 0 and 100")
	ErrZeroTimestamp    = errors.New("recorded_at must be a valid timestamp")
)

// NewSample constructs a Sample stamped with the given time (now when zero)
// and validates it.
func NewSample(latitude, longitude float64, recordedAt time.Time) (Sample, error) {
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	sample := Sample{
		Latitude:   latitude,
		Longitude:  longitude,
		RecordedAt: recordedAt,
	}
	if err := sample.Validate(); err != nil {
		return Sample{}, err
	}
	return sample, nil
}

// Validate checks invariants of the Sample.
func (s Sample) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 || math.IsNaN(s.Latitude) {
		return ErrInvalidLatitude
	}
	if s.Longitude < -180 || s.Longitude > 180 || math.IsNaN(s.Longitude) {
		return ErrInvalidLongitude
	}

	// optional metrics
	if s.AccuracyMeters != nil {
		if *s.AccuracyMeters < 0 || math.IsNaN(*s.AccuracyMeters) {
			return ErrNegativeAccuracy
		}
	}
	if s.SpeedKMH != nil {
		if *s.SpeedKMH < 0 || math.IsNaN(*s.SpeedKMH) {
			return ErrNegativeSpeed
		}
	}
	if s.HeadingDegrees != nil {
		// allow exactly 0 and 360 (some receivers report 360.0 instead of 0.0)
		if *s.HeadingDegrees < 0 || *s.HeadingDegrees > 360 || math.IsNaN(*s.HeadingDegrees) {
			return ErrInvalidHeading
		}
	}
	if s.BatteryLevel != nil {
		if *s.BatteryLevel < 0 || *s.BatteryLevel > 100 || math.IsNaN(*s.BatteryLevel) {
			return ErrInvalidBattery
		}
	}

	if s.RecordedAt.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// Float is a convenience for building optional metric fields.
func Float(v float64) *float64 { return &v }
