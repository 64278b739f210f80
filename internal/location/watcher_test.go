package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"delivery-track/internal/geo"
	"delivery-track/internal/logger"
)

// scriptedProvider returns a fixed sequence of read results, then blocks
// until the context expires.
type scriptedProvider struct {
	mu      sync.Mutex
	results []readResult
	reads   int
	closes  int
}

type readResult struct {
	sample geo.Sample
	err    error
}

func (p *scriptedProvider) Name() string    { return "scripted" }
func (p *scriptedProvider) Supported() bool { return true }
func (p *scriptedProvider) Connect() error  { return nil }

func (p *scriptedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

func (p *scriptedProvider) Read(ctx context.Context) (geo.Sample, error) {
	p.mu.Lock()
	if p.reads < len(p.results) {
		r := p.results[p.reads]
		p.reads++
		p.mu.Unlock()
		return r.sample, r.err
	}
	p.mu.Unlock()
	<-ctx.Done()
	return geo.Sample{}, ctx.Err()
}

func (p *scriptedProvider) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func testWatcher(p Provider) *Watcher {
	return NewWatcher(p, 5*time.Millisecond, 50*time.Millisecond, logger.New("watcher-test"))
}

func TestWatcherDeliversSamples(t *testing.T) {
	want := geo.Sample{Latitude: 48.1173, Longitude: 11.5167, RecordedAt: time.Now().UTC()}
	p := &scriptedProvider{results: []readResult{{sample: want}}}

	got := make(chan geo.Sample, 1)
	w := testWatcher(p)
	if err := w.Start(context.Background(), func(s geo.Sample) { got <- s }); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	select {
	case s := <-got:
		if s.Latitude != want.Latitude || s.Longitude != want.Longitude {
			t.Fatalf("got %v/%v, want %v/%v", s.Latitude, s.Longitude, want.Latitude, want.Longitude)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}
}

func TestWatcherSurvivesReadErrors(t *testing.T) {
	want := geo.Sample{Latitude: 10, Longitude: 20, RecordedAt: time.Now().UTC()}
	p := &scriptedProvider{results: []readResult{
		{err: ErrNoFix},
		{err: errors.New("serial glitch")},
		{sample: want},
	}}

	got := make(chan geo.Sample, 1)
	w := testWatcher(p)
	if err := w.Start(context.Background(), func(s geo.Sample) { got <- s }); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	select {
	case s := <-got:
		if s.Latitude != want.Latitude {
			t.Fatalf("sample after errors = %v, want %v", s.Latitude, want.Latitude)
		}
	case <-time.After(time.Second):
		t.Fatal("subscription did not survive read errors")
	}
}

func TestWatcherUnsupportedProviderFailsClosed(t *testing.T) {
	w := testWatcher(NewNMEA("", 0))
	err := w.Start(context.Background(), func(geo.Sample) {})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	p := &scriptedProvider{}
	w := testWatcher(p)
	if err := w.Start(context.Background(), func(geo.Sample) {}); err != nil {
		t.Fatalf("start: %v", err)
	}

	w.Stop()
	w.Stop()
	w.Stop()

	if n := p.closeCount(); n != 1 {
		t.Fatalf("provider closed %d times, want 1", n)
	}
}

func TestWatcherStartTwiceIsNoOp(t *testing.T) {
	p := &scriptedProvider{}
	w := testWatcher(p)
	if err := w.Start(context.Background(), func(geo.Sample) {}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := w.Start(context.Background(), func(geo.Sample) {}); err != nil {
		t.Fatalf("second start: %v", err)
	}
	w.Stop()
}
