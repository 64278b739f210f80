package contracts

import (
	"errors"
	"testing"
	"time"

	"delivery-track/internal/geo"
)

func TestTrackingURL(t *testing.T) {
	got, err := TrackingURL("wss://track.example.com", "del_123", RoleCarrier, "tok-abc")
	if err != nil {
		t.Fatalf("tracking url: %v", err)
	}
	want := "wss://track.example.com/ws/tracking/del_123/carrier?token=tok-abc"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestTrackingURLTrimsTrailingSlash(t *testing.T) {
	got, err := TrackingURL("wss://track.example.com/", "del_123", RoleWatch, "tok")
	if err != nil {
		t.Fatalf("tracking url: %v", err)
	}
	want := "wss://track.example.com/ws/tracking/del_123/watch?token=tok"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestTrackingURLValidation(t *testing.T) {
	cases := []struct {
		name       string
		endpoint   string
		deliveryID string
		role       Role
		token      string
		wantErr    error
	}{
		{"empty endpoint", "", "d1", RoleCarrier, "t", ErrEmptyEndpoint},
		{"blank endpoint", "   ", "d1", RoleCarrier, "t", ErrEmptyEndpoint},
		{"empty delivery", "wss://x", "", RoleCarrier, "t", ErrEmptyDeliveryID},
		{"invalid role", "wss://x", "d1", Role("admin"), "t", ErrInvalidRole},
		{"empty token", "wss://x", "d1", RoleWatch, "", ErrEmptyToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := TrackingURL(tc.endpoint, tc.deliveryID, tc.role, tc.token)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleCarrier.Valid() || !RoleWatch.Valid() {
		t.Fatal("known roles must be valid")
	}
	if Role("dispatcher").Valid() {
		t.Fatal("unknown role must be invalid")
	}
}

func TestWirePointRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	s := geo.Sample{
		Latitude:       48.1173,
		Longitude:      11.5167,
		AccuracyMeters: geo.Float(4.5),
		SpeedKMH:       geo.Float(41.5),
		RecordedAt:     now,
	}

	back := FromSample(s).Sample()
	if back.Latitude != s.Latitude || back.Longitude != s.Longitude {
		t.Fatalf("position changed: %+v", back)
	}
	if back.AccuracyMeters == nil || *back.AccuracyMeters != 4.5 {
		t.Fatalf("accuracy lost: %v", back.AccuracyMeters)
	}
	if back.HeadingDegrees != nil {
		t.Fatal("unset heading must stay unset")
	}
	if !back.RecordedAt.Equal(now) {
		t.Fatalf("timestamp changed: %v", back.RecordedAt)
	}
}

func TestWirePointStampsMissingTimestamp(t *testing.T) {
	s := WirePoint{Lat: 1, Lng: 2}.Sample()
	if s.RecordedAt.IsZero() {
		t.Fatal("expected receive-time stamp for timestampless point")
	}
}
