package ring

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwkim3330/netwatch/internal/dissect"
	"github.com/hwkim3330/netwatch/internal/filter"
)

func rec(proto string) dissect.Record {
	ipProto := map[string]uint8{"TCP": 6, "UDP": 17}[proto]
	return dissect.Record{
		Timestamp: time.Now(),
		Raw:       []byte{0xAA, 0xBB},
		Length:    2,
		Dissected: dissect.Dissected{HasL3: true, IPProtocol: ipProto, Protocol: proto, Classification: dissect.ClassOrdinary},
	}
}

func TestBuffer_PushAssignsMonotonicIDs(t *testing.T) {
	b := New(10)
	id1 := b.Push(rec("TCP"))
	id2 := b.Push(rec("UDP"))
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
}

func TestBuffer_EvictionKeepsCapacityAndMonotonicity(t *testing.T) {
	b := New(10)
	var lastID uint64
	for i := 0; i < 11; i++ {
		lastID = b.Push(rec("TCP"))
	}
	assert.LessOrEqual(t, b.Len(), 10)
	assert.Equal(t, uint64(11), lastID)

	snap := b.Snapshot(filter.Predicate{}, 0, 0)
	require.NotEmpty(t, snap)
	// The 11th push overflows capacity 10 by one, triggering one eviction
	// batch of K=2 (20% of 10), dropping ids 1 and 2: the first surviving
	// record's id is the (K+1)-th issued.
	assert.Equal(t, uint64(3), snap[0].ID)
	assert.Equal(t, 9, b.Len())
}

func TestBuffer_SnapshotRespectsOffsetAndLimit(t *testing.T) {
	b := New(100)
	for i := 0; i < 5; i++ {
		b.Push(rec("TCP"))
	}
	p, err := filter.Compile("")
	require.NoError(t, err)

	snap := b.Snapshot(p, 3, 10)
	require.Len(t, snap, 3)
	assert.Equal(t, uint64(3), snap[0].ID)

	limited := b.Snapshot(p, 0, 2)
	assert.Len(t, limited, 2)
}

func TestBuffer_SnapshotAppliesFilter(t *testing.T) {
	b := New(100)
	b.Push(rec("TCP"))
	b.Push(rec("UDP"))
	b.Push(rec("TCP"))

	p, err := filter.Compile("tcp")
	require.NoError(t, err)
	snap := b.Snapshot(p, 0, 0)
	assert.Len(t, snap, 2)
}

func TestBuffer_ClearPreservesNextID(t *testing.T) {
	b := New(10)
	b.Push(rec("TCP"))
	b.Push(rec("TCP"))
	b.Clear()
	assert.Equal(t, 0, b.Len())
	id := b.Push(rec("TCP"))
	assert.Equal(t, uint64(3), id)
}

func TestExportImportPCAP_RoundTrips(t *testing.T) {
	b := New(100)
	eth := make([]byte, 14)
	eth[12], eth[13] = 0x08, 0x00 // IPv4 ethertype, no valid payload beyond this
	b.Push(dissect.Dissect(0, time.Now(), eth, len(eth)))
	b.Push(dissect.Dissect(0, time.Now(), eth, len(eth)))

	var buf bytes.Buffer
	require.NoError(t, b.ExportPCAP(&buf))

	imported, err := ImportPCAP(&buf)
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Equal(t, uint64(1), imported[0].ID)
	assert.Equal(t, uint64(2), imported[1].ID)
}
