package location

import (
	"context"
	"errors"

	"delivery-track/internal/geo"
)

// Provider abstracts the device location source. Implementations are used
// from a single Watcher goroutine and need not be concurrency-safe beyond
// that.
type Provider interface {
	Name() string
	// Supported reports whether the underlying capability exists on this
	// device. Callers must fail closed when it returns false.
	Supported() bool
	Connect() error
	Close() error
	// Read returns one fresh high-accuracy fix. It must never hand back a
	// cached position; ctx bounds how long a single acquisition may block.
	Read(ctx context.Context) (geo.Sample, error)
}

var (
	// ErrUnsupported is a capability error: the device has no usable
	// location source, so tracking cannot start.
	ErrUnsupported = errors.New("location provider not supported on this device")
	// ErrNoFix is an acquisition error: the provider is alive but produced
	// no valid fix within the read window.
	ErrNoFix = errors.New("no valid position fix")
)
