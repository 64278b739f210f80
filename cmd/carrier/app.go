package carrier

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delivery-track/internal/backend"
	"delivery-track/internal/config"
	"delivery-track/internal/contracts"
	"delivery-track/internal/location"
	"delivery-track/internal/logger"
	"delivery-track/internal/track"
	"delivery-track/internal/wakelock"
)

// Run starts the carrier agent for one delivery and blocks until ctx is
// cancelled. Every exit path stops sampling, closes the channel, and
// releases the wake lock.
func Run(ctx context.Context, cfg *config.Config, deliveryID, token string, interval time.Duration) error {
	log := logger.New("carrier-agent")
	ctx = logger.WithNewRequestID(logger.WithDeliveryID(ctx, deliveryID))

	if err := backend.CheckToken(token, time.Now()); err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	conn := track.NewConn(track.Options{
		Endpoint:      cfg.Tracking.Endpoint,
		DeliveryID:    deliveryID,
		Role:          contracts.RoleCarrier,
		Token:         token,
		ReconnectWait: time.Duration(cfg.Tracking.ReconnectWaitSeconds) * time.Second,
		RouteCapacity: cfg.Tracking.RouteBufferCapacity,
		Producer:      "carrier-agent",
	}, log)

	var wlProvider wakelock.Provider
	if cfg.WakeLock.Enabled {
		wlProvider = wakelock.NewSysfs()
	}
	wl := wakelock.NewManager(wlProvider, cfg.WakeLock.Name, log)

	// wake lock follows session state transitions, not socket events
	conn.OnStatus = func(active bool) {
		if active {
			wl.Acquire(ctx)
		} else {
			wl.Release(ctx)
		}
	}
	conn.OnError = func(err error) {
		log.Error(ctx, "tracking_transport_error", "Transient tracking channel error", err, nil)
	}

	watcher := location.NewWatcher(
		provider,
		time.Second,
		time.Duration(cfg.Sampling.ReadTimeoutSeconds)*time.Second,
		log,
	)
	sampler := track.NewSampler(conn, watcher, log)

	if err := sampler.Start(ctx, interval); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}
	wl.Acquire(ctx)

	defer func() {
		sampler.Stop()
		wl.Release(ctx)
		log.Info(ctx, "carrier_stopped", "Carrier agent stopped", nil)
	}()

	log.Info(ctx, "carrier_started", "Carrier agent streaming positions",
		map[string]any{"interval": interval.String(), "provider": provider.Name()})

	// SIGCONT stands in for regaining foreground: the platform may have
	// silently revoked the lock while the agent was stopped.
	fg := make(chan os.Signal, 1)
	signal.Notify(fg, syscall.SIGCONT)
	defer signal.Stop(fg)

	for {
		select {
		case <-fg:
			wl.HandleForeground(ctx, conn.Session().Active())
		case <-ctx.Done():
			return nil
		}
	}
}

// buildProvider selects the device location source from config. Fails
// closed when the configured source is absent.
func buildProvider(cfg *config.Config) (location.Provider, error) {
	switch cfg.GPS.Driver {
	case "nmea":
		p := location.NewNMEA(cfg.GPS.PortPath, cfg.GPS.BaudRate)
		if !p.Supported() {
			return nil, fmt.Errorf("%w: no GPS at %s", track.ErrNoLocationProvider, cfg.GPS.PortPath)
		}
		return p, nil
	case "sim":
		return location.NewSim(52.52, 13.405), nil
	default:
		return nil, track.ErrNoLocationProvider
	}
}
