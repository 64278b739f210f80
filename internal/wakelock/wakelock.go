package wakelock

import (
	"context"
	"errors"
	"os"
	"sync"

	"delivery-track/internal/logger"
)

// Provider is the platform stay-awake capability. Implementations decide
// what a "lock" physically is; the Manager guarantees the scoped-resource
// contract on top.
type Provider interface {
	Supported() bool
	Acquire(name string) error
	Release(name string) error
}

// ErrUnsupported marks a device without a wake-lock capability. Tracking
// proceeds without it.
var ErrUnsupported = errors.New("wake lock not supported on this device")

// SysfsProvider holds kernel wake locks through the /sys/power interface.
type SysfsProvider struct {
	lockPath   string
	unlockPath string
}

// NewSysfs returns the standard kernel wake-lock provider.
func NewSysfs() *SysfsProvider {
	return &SysfsProvider{
		lockPath:   "/sys/power/wake_lock",
		unlockPath: "/sys/power/wake_unlock",
	}
}

func (p *SysfsProvider) Supported() bool {
	_, err := os.Stat(p.lockPath)
	return err == nil
}

func (p *SysfsProvider) Acquire(name string) error {
	if !p.Supported() {
		return ErrUnsupported
	}
	return os.WriteFile(p.lockPath, []byte(name), 0o200)
}

func (p *SysfsProvider) Release(name string) error {
	if !p.Supported() {
		return ErrUnsupported
	}
	return os.WriteFile(p.unlockPath, []byte(name), 0o200)
}

// NoopProvider is the unsupported-capability stand-in.
type NoopProvider struct{}

func (NoopProvider) Supported() bool      { return false }
func (NoopProvider) Acquire(string) error { return ErrUnsupported }
func (NoopProvider) Release(string) error { return ErrUnsupported }

// Manager owns at most one live wake-lock handle per tracking session.
// Acquire and Release are idempotent no-ops when already in the target
// state; failures are logged and never fatal.
type Manager struct {
	provider Provider
	name     string
	log      *logger.Logger

	mu   sync.Mutex
	held bool
}

// NewManager wraps a provider. A nil provider behaves as unsupported.
func NewManager(provider Provider, name string, log *logger.Logger) *Manager {
	if provider == nil {
		provider = NoopProvider{}
	}
	if name == "" {
		name = "delivery-track"
	}
	return &Manager{provider: provider, name: name, log: log}
}

// Acquire takes the lock if not already held. Capability failures degrade
// to "tracking without wake lock".
func (m *Manager) Acquire(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return
	}
	if err := m.provider.Acquire(m.name); err != nil {
		m.log.Info(ctx, "wakelock_unavailable", "Continuing without wake lock",
			map[string]any{"reason": err.Error()})
		return
	}
	m.held = true
	m.log.Debug(ctx, "wakelock_acquired", "Wake lock acquired", map[string]any{"name": m.name})
}

// Release drops the lock if held. Runs on every termination path.
func (m *Manager) Release(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		return
	}
	m.held = false
	if err := m.provider.Release(m.name); err != nil {
		m.log.Error(ctx, "wakelock_release_failed", "Failed to release wake lock", err,
			map[string]any{"name": m.name})
		return
	}
	m.log.Debug(ctx, "wakelock_released", "Wake lock released", map[string]any{"name": m.name})
}

// HandleForeground re-acquires after the platform may have silently revoked
// the lock in the background, but only while a session is still active.
func (m *Manager) HandleForeground(ctx context.Context, sessionActive bool) {
	if !sessionActive {
		return
	}
	m.mu.Lock()
	// the platform revocation happens outside our sight; reset and retake
	m.held = false
	m.mu.Unlock()
	m.Acquire(ctx)
}

// Held reports whether the manager believes it holds the lock.
func (m *Manager) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}
