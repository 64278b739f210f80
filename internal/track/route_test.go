package track

import (
	"testing"
	"time"

	"delivery-track/internal/geo"
)

func sampleAt(lat float64) geo.Sample {
	return geo.Sample{Latitude: lat, Longitude: 0, RecordedAt: time.Now()}
}

func latitudes(points []geo.Sample) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Latitude
	}
	return out
}

func TestRouteBufferAppendAndOrder(t *testing.T) {
	b := NewRouteBuffer(5)
	for i := 0; i < 3; i++ {
		b.Append(sampleAt(float64(i)))
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
	got := latitudes(b.Snapshot())
	for i, lat := range got {
		if lat != float64(i) {
			t.Fatalf("order broken at %d: %v", i, got)
		}
	}
}

func TestRouteBufferEvictsOldestFirst(t *testing.T) {
	b := NewRouteBuffer(3)
	for i := 0; i < 7; i++ {
		b.Append(sampleAt(float64(i)))
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
	got := latitudes(b.Snapshot())
	want := []float64{4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("retained = %v, want %v", got, want)
		}
	}
}

func TestRouteBufferReplaceAll(t *testing.T) {
	b := NewRouteBuffer(3)
	b.Append(sampleAt(100))

	b.ReplaceAll([]geo.Sample{sampleAt(1), sampleAt(2)})
	got := latitudes(b.Snapshot())
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("replace: got %v", got)
	}

	// oversized input keeps only the most recent entries
	b.ReplaceAll([]geo.Sample{sampleAt(1), sampleAt(2), sampleAt(3), sampleAt(4), sampleAt(5)})
	got = latitudes(b.Snapshot())
	want := []float64{3, 4, 5}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("retained = %v, want %v", got, want)
		}
	}
}

func TestRouteBufferSnapshotIsACopy(t *testing.T) {
	b := NewRouteBuffer(4)
	b.Append(sampleAt(1))

	snap := b.Snapshot()
	snap[0].Latitude = 99

	if got := b.Snapshot()[0].Latitude; got != 1 {
		t.Fatalf("snapshot mutation leaked into buffer: %v", got)
	}
}

func TestRouteBufferDefaultCapacity(t *testing.T) {
	b := NewRouteBuffer(0)
	for i := 0; i < DefaultRouteCapacity+10; i++ {
		b.Append(sampleAt(float64(i)))
	}
	if b.Len() != DefaultRouteCapacity {
		t.Fatalf("len = %d, want %d", b.Len(), DefaultRouteCapacity)
	}
}
