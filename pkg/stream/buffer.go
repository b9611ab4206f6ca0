// Package stream implements the live-reading fan-out path: an ingestion
// worker pushes samples into a per-(tenant, unit) buffer, a ticker flushes
// each buffer once a second, and a Hub broadcasts the flushed batch to every
// subscriber of that unit's tenant/site/unit rooms (spec §4.7).
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sample is one reading's live-stream projection.
type Sample struct {
	Temperature int32
	Humidity    *int32
	RecordedAt  time.Time
}

// Batch is what one flush tick delivers to subscribers for a single unit.
type Batch struct {
	TenantID uuid.UUID
	UnitID   uuid.UUID
	Samples  []Sample
}

type bufferKey struct {
	TenantID uuid.UUID
	UnitID   uuid.UUID
}

// Buffer accumulates samples per unit between flush ticks. It is the
// spec's answer to "don't broadcast every single reading" — high-frequency
// sensors would otherwise flood subscribers with one message per sample.
type Buffer struct {
	mu        sync.Mutex
	pending   map[bufferKey][]Sample
	flushFunc func(Batch)
	interval  time.Duration
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewBuffer creates a Buffer that calls onFlush once per interval for every
// unit that received at least one sample since the last tick.
func NewBuffer(interval time.Duration, onFlush func(Batch)) *Buffer {
	return &Buffer{
		pending:   make(map[bufferKey][]Sample),
		flushFunc: onFlush,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// Push enqueues a sample for the next flush. Never blocks the caller.
func (b *Buffer) Push(tenantID, unitID uuid.UUID, s Sample) {
	key := bufferKey{TenantID: tenantID, UnitID: unitID}
	b.mu.Lock()
	b.pending[key] = append(b.pending[key], s)
	b.mu.Unlock()
}

// Run starts the flush ticker. It returns when Stop is called.
func (b *Buffer) Run() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				b.flushAll()
				return
			case <-ticker.C:
				b.flushAll()
			}
		}
	}()
}

// Stop halts the ticker and flushes any remaining buffered samples.
func (b *Buffer) Stop() {
	close(b.stop)
	b.wg.Wait()
}

func (b *Buffer) flushAll() {
	b.mu.Lock()
	drained := b.pending
	b.pending = make(map[bufferKey][]Sample, len(drained))
	b.mu.Unlock()

	for key, samples := range drained {
		if len(samples) == 0 {
			continue
		}
		b.flushFunc(Batch{TenantID: key.TenantID, UnitID: key.UnitID, Samples: samples})
	}
}

// Depth reports the total number of samples awaiting the next flush, for
// the buffer-depth gauge.
func (b *Buffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, samples := range b.pending {
		n += len(samples)
	}
	return n
}
