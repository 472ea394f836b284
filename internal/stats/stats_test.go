package stats

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwkim3330/netwatch/internal/dissect"
)

func tcpRecord(src, dst string, dstPort uint16, wireLen int) *dissect.Dissected {
	return &dissect.Dissected{
		HasL3: true, SrcIP: net.ParseIP(src), DstIP: net.ParseIP(dst),
		HasL4: true, Protocol: "TCP", DstPort: dstPort,
	}
}

func TestObserve_ProtocolCounts(t *testing.T) {
	a := New()
	a.Observe(tcpRecord("10.0.0.1", "10.0.0.2", 443, 100), 100, time.Now())
	a.Observe(tcpRecord("10.0.0.1", "10.0.0.2", 443, 200), 200, time.Now())

	protos := a.Protocols()
	assert.Equal(t, uint64(2), protos["TCP"])
}

func TestObserve_HostAndConversation(t *testing.T) {
	a := New()
	now := time.Now()
	a.Observe(tcpRecord("10.0.0.1", "10.0.0.2", 443, 100), 100, now)

	hosts := a.Hosts()
	require.Len(t, hosts, 2)

	convs := a.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, uint64(1), convs[0].Packets)
	assert.Equal(t, uint64(100), convs[0].Bytes)
}

func TestObserve_ConversationUnorderedPair(t *testing.T) {
	a := New()
	now := time.Now()
	a.Observe(tcpRecord("10.0.0.1", "10.0.0.2", 443, 100), 100, now)
	a.Observe(tcpRecord("10.0.0.2", "10.0.0.1", 51234, 100), 100, now)

	convs := a.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, uint64(2), convs[0].Packets)
}

func TestHistogram_Buckets(t *testing.T) {
	a := New()
	now := time.Now()
	a.Observe(tcpRecord("10.0.0.1", "10.0.0.2", 443, 60), 60, now)
	a.Observe(tcpRecord("10.0.0.1", "10.0.0.2", 443, 2000), 2000, now)

	h := a.Histogram()
	assert.Equal(t, uint64(1), h[0])  // <=64
	assert.Equal(t, uint64(1), h[6])  // >1518
}

func TestTick_RollingSeries(t *testing.T) {
	a := New()
	now := time.Now()
	a.Observe(tcpRecord("10.0.0.1", "10.0.0.2", 443, 100), 100, now)
	a.Tick(now)

	series := a.Series()
	require.Len(t, series, 1)
	assert.Equal(t, uint64(1), series[0].Packets)

	// A tick long after the window should evict the old sample.
	a.Tick(now.Add(2 * time.Minute))
	series = a.Series()
	assert.Len(t, series, 1) // only the most recent sample remains
}

func TestClear_ResetsEverything(t *testing.T) {
	a := New()
	now := time.Now()
	a.Observe(tcpRecord("10.0.0.1", "10.0.0.2", 443, 100), 100, now)
	a.Tick(now)
	a.Clear()

	assert.Empty(t, a.Protocols())
	assert.Empty(t, a.Hosts())
	assert.Empty(t, a.Conversations())
	assert.Empty(t, a.Series())
	assert.Equal(t, [7]uint64{}, a.Histogram())
}
