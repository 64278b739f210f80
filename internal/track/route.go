package track

import (
	"sync"

	"delivery-track/internal/geo"
)

// DefaultRouteCapacity bounds the in-memory traveled path.
const DefaultRouteCapacity = 2000

// RouteBuffer accumulates received positions into a bounded,
// insertion-ordered sequence representing the traveled path. When full, the
// oldest entries are evicted first; eviction never reorders what remains.
// All writes come from the connection's dispatch goroutine; readers get
// copies.
type RouteBuffer struct {
	mu     sync.Mutex
	points []geo.Sample // ring storage
	head   int          // index of the oldest entry
	size   int
}

// NewRouteBuffer creates an empty buffer bounded to capacity
// (DefaultRouteCapacity when <= 0).
func NewRouteBuffer(capacity int) *RouteBuffer {
	if capacity <= 0 {
		capacity = DefaultRouteCapacity
	}
	return &RouteBuffer{points: make([]geo.Sample, capacity)}
}

// Append adds a sample, evicting the oldest entry when at capacity.
func (b *RouteBuffer) Append(s geo.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < len(b.points) {
		b.points[(b.head+b.size)%len(b.points)] = s
		b.size++
		return
	}
	// full: overwrite oldest and advance
	b.points[b.head] = s
	b.head = (b.head + 1) % len(b.points)
}

// ReplaceAll swaps the whole path for the provided sequence, used for
// late-join catch-up. Only the most recent entries survive when the input
// exceeds capacity.
func (b *RouteBuffer) ReplaceAll(points []geo.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(points) > len(b.points) {
		points = points[len(points)-len(b.points):]
	}
	b.head = 0
	b.size = copy(b.points, points)
}

// Len reports the number of retained samples.
func (b *RouteBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Snapshot returns the retained path oldest-first as an independent copy.
func (b *RouteBuffer) Snapshot() []geo.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]geo.Sample, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.points[(b.head+i)%len(b.points)]
	}
	return out
}
