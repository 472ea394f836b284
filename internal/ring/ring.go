// Package ring implements the bounded, monotonically-id'd packet log (C3)
// and the pcap export/import bridge (C12) built on gopacket/gopacket/pcapgo.
package ring

import (
	"sync"

	"github.com/hwkim3330/netwatch/internal/dissect"
	"github.com/hwkim3330/netwatch/internal/filter"
)

// DefaultCapacity is the ring's default record capacity (spec default: 50000).
const DefaultCapacity = 50000

// evictionFraction is the fraction of capacity dropped in one batch on
// overflow, amortizing eviction cost (spec: "K ≈ 20% of C").
const evictionFraction = 0.20

// Buffer is a single-writer/many-reader bounded log of dissect.Record,
// ordered by strictly increasing id.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	nextID   uint64
	records  []dissect.Record
}

// New constructs a Buffer with the given capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity, nextID: 1}
}

// Push stamps the next id onto rec, appends it, evicts if the buffer has
// grown past capacity, and returns the stamped id.
func (b *Buffer) Push(rec dissect.Record) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec.ID = b.nextID
	b.nextID++
	b.records = append(b.records, rec)

	if len(b.records) > b.capacity {
		evict := int(float64(b.capacity) * evictionFraction)
		if evict < 1 {
			evict = 1
		}
		if evict > len(b.records) {
			evict = len(b.records)
		}
		// Drop exactly the oldest `evict` records in one batch truncation
		// from the head, amortizing eviction cost rather than trimming one
		// record per overflowing push. Reallocate rather than reslice in
		// place so the evicted records' backing array can be collected.
		kept := make([]dissect.Record, len(b.records)-evict)
		copy(kept, b.records[evict:])
		b.records = kept
	}

	return rec.ID
}

// Len returns the number of records currently retained.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// NextID returns the id that would be assigned to the next pushed record,
// without mutating state.
func (b *Buffer) NextID() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextID
}

// Snapshot returns up to limit records with id >= offset that satisfy pred,
// in id-ascending order. A limit <= 0 means unbounded.
func (b *Buffer) Snapshot(pred filter.Predicate, offset uint64, limit int) []dissect.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]dissect.Record, 0, len(b.records))
	for i := range b.records {
		rec := &b.records[i]
		if rec.ID < offset {
			continue
		}
		if !pred.Match(rec) {
			continue
		}
		out = append(out, *rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// All returns every retained record, in id-ascending order. Used by the
// pcap exporter, which never filters or paginates.
func (b *Buffer) All() []dissect.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]dissect.Record, len(b.records))
	copy(out, b.records)
	return out
}

// Clear drops all retained records but preserves nextID, so id monotonicity
// survives a clear.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
}
