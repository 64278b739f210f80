package location

import (
	"context"
	"math"
	"sync"
	"time"

	"delivery-track/internal/geo"
)

// SimProvider generates a deterministic circular drive around a center
// point. Used for demos and as a stand-in where no GPS hardware exists.
type SimProvider struct {
	mu        sync.Mutex
	centerLat float64
	centerLng float64
	radius    float64
	step      float64
	t         float64
}

// NewSim creates a simulator circling the given center at roughly 500m.
func NewSim(centerLat, centerLng float64) *SimProvider {
	return &SimProvider{
		centerLat: centerLat,
		centerLng: centerLng,
		radius:    0.005,
		step:      0.1,
	}
}

func (s *SimProvider) Name() string    { return "sim" }
func (s *SimProvider) Supported() bool { return true }
func (s *SimProvider) Connect() error  { return nil }
func (s *SimProvider) Close() error    { return nil }

func (s *SimProvider) Read(_ context.Context) (geo.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t += s.step

	return geo.Sample{
		Latitude:       s.centerLat + s.radius*math.Sin(s.t),
		Longitude:      s.centerLng + s.radius*math.Cos(s.t),
		SpeedKMH:       geo.Float(40 + 10*math.Sin(s.t*3)),
		HeadingDegrees: geo.Float(math.Mod(s.t*180/math.Pi, 360)),
		AccuracyMeters: geo.Float(5),
		RecordedAt:     time.Now().UTC(),
	}, nil
}
