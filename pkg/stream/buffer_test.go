package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBufferFlushesOnTick(t *testing.T) {
	var mu sync.Mutex
	var flushed []Batch

	b := NewBuffer(20*time.Millisecond, func(batch Batch) {
		mu.Lock()
		flushed = append(flushed, batch)
		mu.Unlock()
	})
	b.Run()
	defer b.Stop()

	tenantID, unitID := uuid.New(), uuid.New()
	b.Push(tenantID, unitID, Sample{Temperature: 10, RecordedAt: time.Now()})
	b.Push(tenantID, unitID, Sample{Temperature: 20, RecordedAt: time.Now()})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(flushed)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) == 0 {
		t.Fatal("expected at least one flush")
	}
	if len(flushed[0].Samples) != 2 {
		t.Fatalf("expected 2 samples in first flush, got %d", len(flushed[0].Samples))
	}
}

func TestBufferDepthTracksPendingSamples(t *testing.T) {
	b := NewBuffer(time.Hour, func(Batch) {})
	tenantID, unitID := uuid.New(), uuid.New()

	if b.Depth() != 0 {
		t.Fatalf("expected empty buffer, got depth %d", b.Depth())
	}
	b.Push(tenantID, unitID, Sample{Temperature: 1})
	b.Push(tenantID, unitID, Sample{Temperature: 2})
	if got := b.Depth(); got != 2 {
		t.Fatalf("Depth() = %d, want 2", got)
	}
}

func TestRoomsForUnitOmitsSiteWhenNil(t *testing.T) {
	tenantID, unitID := uuid.New(), uuid.New()
	rooms := roomsForUnit(tenantID, uuid.Nil, unitID)
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms without a site, got %d: %v", len(rooms), rooms)
	}

	siteID := uuid.New()
	rooms = roomsForUnit(tenantID, siteID, unitID)
	if len(rooms) != 3 {
		t.Fatalf("expected 3 rooms with a site, got %d: %v", len(rooms), rooms)
	}
}
