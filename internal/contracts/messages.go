package contracts

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"delivery-track/internal/geo"
)

// Message types sent by the client.
const (
	TypeLocationUpdate  = "location_update"
	TypePauseTracking   = "pause_tracking"
	TypeResumeTracking  = "resume_tracking"
	TypeGetLastLocation = "get_last_location"
	TypeGetRouteHistory = "get_route_history"
)

// Message types pushed by the tracking service. TypeLocationUpdate is shared:
// inbound it carries a nested location object, outbound it is flat.
const (
	TypeConnectionStatus = "connection_status"
	TypeTrackingStarted  = "tracking_started"
	TypeTrackingResumed  = "tracking_resumed"
	TypeTrackingStopped  = "tracking_stopped"
	TypeTrackingPaused   = "tracking_paused"
	TypeLastLocation     = "last_location"
	TypeRouteHistory     = "route_history"
)

// Close codes the tracking service uses. CloseNormal and CloseSessionEnded
// are terminal; every other code is treated as a recoverable network flap.
const (
	CloseNormal       = 1000
	CloseSessionEnded = 4000
)

// Role selects the endpoint path and message set a connection uses.
type Role string

const (
	RoleCarrier Role = "carrier" // sends position samples
	RoleWatch   Role = "watch"   // observes position samples
)

// Valid reports whether the role is one the service knows.
func (r Role) Valid() bool {
	return r == RoleCarrier || r == RoleWatch
}

var (
	ErrEmptyEndpoint   = errors.New("tracking endpoint cannot be empty")
	ErrEmptyDeliveryID = errors.New("delivery ID cannot be empty")
	ErrInvalidRole     = errors.New("role must be carrier or watch")
	ErrEmptyToken      = errors.New("credential token cannot be empty")
)

// TrackingURL derives the per-delivery websocket address:
//
//	{endpoint}/ws/tracking/{deliveryID}/{role}?token={credential}
func TrackingURL(endpoint, deliveryID string, role Role, token string) (string, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return "", ErrEmptyEndpoint
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return "", ErrEmptyDeliveryID
	}
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrEmptyToken
	}

	u, err := url.Parse(endpoint + "/ws/tracking/" + url.PathEscape(deliveryID) + "/" + string(role))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Envelope adds cross-cutting headers all outbound frames may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	SentAt        time.Time `json:"sent_at,omitempty"`
}

// OutboundLocation is the carrier-to-service position frame.
type OutboundLocation struct {
	Type         string   `json:"type"` // TypeLocationUpdate
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	BatteryLevel *float64 `json:"battery_level,omitempty"`
	Envelope
}

// Command is a bodyless client request (pause/resume/get_last_location/...).
type Command struct {
	Type string `json:"type"`
	Envelope
}

// WirePoint is a position as it appears in service-pushed frames.
type WirePoint struct {
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	Speed        *float64  `json:"speed,omitempty"`
	Heading      *float64  `json:"heading,omitempty"`
	BatteryLevel *float64  `json:"battery_level,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
}

// Sample converts a wire point into the domain representation. Points
// arriving without a timestamp are stamped with the receive time.
func (p WirePoint) Sample() geo.Sample {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return geo.Sample{
		Latitude:       p.Lat,
		Longitude:      p.Lng,
		AccuracyMeters: p.Accuracy,
		SpeedKMH:       p.Speed,
		HeadingDegrees: p.Heading,
		BatteryLevel:   p.BatteryLevel,
		RecordedAt:     ts,
	}
}

// FromSample builds the wire form of a domain sample.
func FromSample(s geo.Sample) WirePoint {
	return WirePoint{
		Lat:          s.Latitude,
		Lng:          s.Longitude,
		Accuracy:     s.AccuracyMeters,
		Speed:        s.SpeedKMH,
		Heading:      s.HeadingDegrees,
		BatteryLevel: s.BatteryLevel,
		Timestamp:    s.RecordedAt,
	}
}

// Inbound is the envelope of a service-to-client frame. Which fields are
// populated depends on Type.
type Inbound struct {
	Type             string      `json:"type"`
	IsTrackingActive *bool       `json:"is_tracking_active,omitempty"`
	Location         *WirePoint  `json:"location,omitempty"`
	RoutePoints      []WirePoint `json:"route_points,omitempty"`
}
