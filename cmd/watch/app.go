package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"delivery-track/internal/backend"
	"delivery-track/internal/config"
	"delivery-track/internal/contracts"
	"delivery-track/internal/logger"
	"delivery-track/internal/track"
)

// Run starts the observer agent for one delivery: it joins the tracking
// channel in watch role, accumulates the traveled route, and serves the
// current view on a local HTTP port until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, deliveryID, token string) error {
	log := logger.New("watch-agent")
	ctx = logger.WithNewRequestID(logger.WithDeliveryID(ctx, deliveryID))

	if err := backend.CheckToken(token, time.Now()); err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	conn := track.NewConn(track.Options{
		Endpoint:      cfg.Tracking.Endpoint,
		DeliveryID:    deliveryID,
		Role:          contracts.RoleWatch,
		Token:         token,
		ReconnectWait: time.Duration(cfg.Tracking.ReconnectWaitSeconds) * time.Second,
		RouteCapacity: cfg.Tracking.RouteBufferCapacity,
		Producer:      "watch-agent",
	}, log)

	conn.OnStatus = func(active bool) {
		log.Info(ctx, "tracking_status", "Session state changed", map[string]any{"active": active})
	}
	conn.OnError = func(err error) {
		log.Error(ctx, "tracking_transport_error", "Transient tracking channel error", err, nil)
	}

	if err := conn.Connect(ctx); err != nil {
		// reconnect loop keeps trying; catch-up happens once it opens
		log.Error(ctx, "watch_connect_failed", "Initial tracking dial failed, reconnect loop active", err, nil)
	}
	defer conn.Close("watch shutdown")

	// late-join catch-up: pull the traveled path and current position
	conn.RequestRouteHistory()
	conn.RequestLastLocation()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /route", func(w http.ResponseWriter, r *http.Request) {
		points := conn.Route().Snapshot()
		wire := make([]contracts.WirePoint, 0, len(points))
		for _, p := range points {
			wire = append(wire, contracts.FromSample(p))
		}
		writeJSON(w, map[string]any{
			"delivery_id":  deliveryID,
			"point_count":  len(wire),
			"route_points": wire,
		})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"delivery_id":     deliveryID,
			"tracking_active": conn.Session().Active(),
			"channel_state":   conn.State().String(),
		}
		if cur, ok := conn.CurrentLocation(); ok {
			status["current_location"] = contracts.FromSample(cur)
		}
		if err := conn.LastError(); err != nil {
			status["last_error"] = err.Error()
		}
		writeJSON(w, status)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Watch.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	log.Info(ctx, "watch_started", "Watch agent observing delivery",
		map[string]any{"port": cfg.Watch.Port})

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Error(ctx, "http_shutdown_failed", "Status server shutdown failed", err, nil)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "http_server_error", "Status server terminated with error", err, nil)
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
