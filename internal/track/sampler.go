package track

import (
	"context"
	"errors"
	"sync"
	"time"

	"delivery-track/internal/geo"
	"delivery-track/internal/location"
	"delivery-track/internal/logger"
)

// ErrNoLocationProvider is returned when the device lacks a usable location
// source; tracking fails closed.
var ErrNoLocationProvider = errors.New("no location provider available")

// Sender is the outbound side of the connection manager the sampler feeds.
type Sender interface {
	Connect(ctx context.Context) error
	Close(reason string)
	SendLocation(s geo.Sample)
}

// Sampler owns the carrier's continuous position subscription. It throttles
// at the source: a raw tick is forwarded only when at least the configured
// interval has elapsed since the last forwarded sample, and everything in
// between is dropped, never queued. The service therefore always sees the
// freshest position, at a bounded rate, regardless of the provider's native
// cadence.
type Sampler struct {
	sender  Sender
	watcher *location.Watcher
	log     *logger.Logger
	now     func() time.Time

	mu         sync.Mutex
	tracking   bool
	interval   time.Duration
	lastSentAt time.Time
	lastSent   geo.Sample
	hasSent    bool
}

// NewSampler wires a connection manager to a position watcher.
func NewSampler(sender Sender, watcher *location.Watcher, log *logger.Logger) *Sampler {
	return &Sampler{
		sender:  sender,
		watcher: watcher,
		log:     log,
		now:     time.Now,
	}
}

// Start opens the channel and subscribes to position ticks, forwarding at
// most one sample per interval. A second call while tracking is a no-op.
// Fails closed with ErrNoLocationProvider when the capability is missing.
func (s *Sampler) Start(ctx context.Context, interval time.Duration) error {
	s.mu.Lock()
	if s.tracking {
		s.mu.Unlock()
		return nil
	}
	s.interval = interval
	s.hasSent = false
	s.mu.Unlock()

	if err := s.watcher.Start(ctx, s.handleTick); err != nil {
		if errors.Is(err, location.ErrUnsupported) {
			return ErrNoLocationProvider
		}
		return err
	}

	if err := s.sender.Connect(ctx); err != nil {
		// the connection manager keeps retrying on its own; the
		// subscription stays up and sends flow once the channel opens
		s.log.Error(ctx, "tracking_connect_failed", "Initial tracking dial failed, reconnect loop active", err, nil)
	}

	s.mu.Lock()
	s.tracking = true
	s.mu.Unlock()

	s.log.Info(ctx, "tracking_started", "Position sampling started",
		map[string]any{"interval": interval.String()})
	return nil
}

// handleTick applies the minimum-interval throttle to one raw position
// event. Runs on the watcher goroutine.
func (s *Sampler) handleTick(sample geo.Sample) {
	now := s.now()

	s.mu.Lock()
	if s.hasSent && now.Sub(s.lastSentAt) < s.interval {
		s.mu.Unlock()
		return // dropped; only the most recent tick survives the window
	}
	s.mu.Unlock()

	if err := sample.Validate(); err != nil {
		s.log.Error(context.Background(), "sample_invalid", "Discarding invalid position sample", err, nil)
		return
	}

	s.sender.SendLocation(sample)

	s.mu.Lock()
	s.lastSentAt = now
	s.lastSent = sample
	s.hasSent = true
	s.mu.Unlock()
}

// Stop cancels the position subscription and closes the channel. Idempotent
// and safe to call when not tracking.
func (s *Sampler) Stop() {
	s.mu.Lock()
	wasTracking := s.tracking
	s.tracking = false
	s.mu.Unlock()

	if !wasTracking {
		return
	}
	s.watcher.Stop()
	s.sender.Close("tracking stopped")
	s.log.Info(context.Background(), "tracking_stopped", "Position sampling stopped", nil)
}

// LastSent reports the most recently forwarded sample and when it was sent.
func (s *Sampler) LastSent() (geo.Sample, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent, s.lastSentAt, s.hasSent
}
