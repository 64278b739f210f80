package location

import (
	"context"
	"sync"
	"time"

	"delivery-track/internal/geo"
	"delivery-track/internal/logger"
)

// Watcher turns one-shot provider reads into a continuous subscription at
// the provider's native cadence. Each tick is an independent bounded
// acquisition: a timed-out or failed read is reported and the next tick
// proceeds regardless.
type Watcher struct {
	provider    Provider
	cadence     time.Duration
	readTimeout time.Duration
	log         *logger.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewWatcher builds a watcher over the given provider. cadence is how often
// a read is attempted; readTimeout bounds each single acquisition.
func NewWatcher(provider Provider, cadence, readTimeout time.Duration, log *logger.Logger) *Watcher {
	if cadence <= 0 {
		cadence = time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	return &Watcher{
		provider:    provider,
		cadence:     cadence,
		readTimeout: readTimeout,
		log:         log,
	}
}

// Start probes the capability, connects the provider, and begins delivering
// samples to fn from a single goroutine. Fails closed when the device has no
// location source.
func (w *Watcher) Start(ctx context.Context, fn func(geo.Sample)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if w.provider == nil || !w.provider.Supported() {
		return ErrUnsupported
	}
	if err := w.provider.Connect(); err != nil {
		return err
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true
	go w.loop(ctx, fn, w.stop, w.done)
	return nil
}

// Stop cancels the subscription and closes the provider. Safe to call when
// not running, and safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	<-done
	_ = w.provider.Close()
}

func (w *Watcher) loop(ctx context.Context, fn func(geo.Sample), stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		readCtx, cancel := context.WithTimeout(ctx, w.readTimeout)
		sample, err := w.provider.Read(readCtx)
		cancel()
		if err != nil {
			// acquisition errors do not terminate the subscription
			w.log.Error(ctx, "gps_read_failed", "Position acquisition failed", err,
				map[string]any{"provider": w.provider.Name()})
			continue
		}
		fn(sample)
	}
}
