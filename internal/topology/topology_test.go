package topology

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwkim3330/netwatch/internal/dissect"
)

func mac(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func findNode(t *testing.T, m *Maintainer, id string) *Node {
	t.Helper()
	for _, n := range m.Nodes(0) {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %q not found", id)
	return nil
}

// TestIngest_ARPThenDataLink grounds spec.md §8 scenario 3: two ARP replies
// followed by a data packet between the two resolved hosts yields two
// MAC-keyed nodes, each carrying its IP, and one link.
func TestIngest_ARPThenDataLink(t *testing.T) {
	m := New(time.Minute)
	defer m.Stop()
	now := time.Now()

	arp1 := &dissect.Dissected{
		SrcMAC: mac("aa:bb:cc:dd:ee:01"), DstMAC: mac("aa:bb:cc:dd:ee:02"),
		Classification: dissect.ClassARP,
		ARP: &dissect.ARPInfo{SenderIP: net.ParseIP("10.0.0.1"), TargetIP: net.ParseIP("10.0.0.2")},
	}
	m.Ingest(arp1, 42, now)

	arp2 := &dissect.Dissected{
		SrcMAC: mac("aa:bb:cc:dd:ee:02"), DstMAC: mac("aa:bb:cc:dd:ee:01"),
		Classification: dissect.ClassARP,
		ARP: &dissect.ARPInfo{SenderIP: net.ParseIP("10.0.0.2"), TargetIP: net.ParseIP("10.0.0.1")},
	}
	m.Ingest(arp2, 42, now)

	// The ARP exchange alone must already attach an IP to the sender's
	// MAC-keyed node (spec.md §8 scenario 3) -- before any data packet
	// carries SrcIP/DstIP directly.
	node1 := findNode(t, m, "mac:"+mac("aa:bb:cc:dd:ee:01").String())
	assert.Contains(t, node1.IPs, "10.0.0.1")

	data := &dissect.Dissected{
		SrcMAC: mac("aa:bb:cc:dd:ee:01"), DstMAC: mac("aa:bb:cc:dd:ee:02"),
		HasL3: true, SrcIP: net.ParseIP("10.0.0.1"), DstIP: net.ParseIP("10.0.0.2"),
	}
	m.Ingest(data, 100, now)

	nodes := m.Nodes(0)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.Contains(t, n.ID, "mac:")
	}

	links := m.Links()
	require.Len(t, links, 1)
	assert.GreaterOrEqual(t, links[0].TotalPackets(), uint64(1))
}

func TestIngest_SelfLoopDropped(t *testing.T) {
	m := New(time.Minute)
	defer m.Stop()
	now := time.Now()

	m1 := mac("aa:bb:cc:dd:ee:01")
	d := &dissect.Dissected{SrcMAC: m1, DstMAC: m1}
	m.Ingest(d, 64, now)

	assert.Empty(t, m.Links())
}

func TestClassify_BroadcastMAC(t *testing.T) {
	m := New(time.Minute)
	defer m.Stop()
	now := time.Now()

	d := &dissect.Dissected{
		SrcMAC: mac("aa:bb:cc:dd:ee:01"), DstMAC: mac("ff:ff:ff:ff:ff:ff"),
	}
	m.Ingest(d, 64, now)

	nodes := m.Nodes(0)
	var found bool
	for _, n := range nodes {
		if n.ID == "mac:ff:ff:ff:ff:ff:ff" {
			found = true
			assert.Equal(t, TypeBroadcast, n.Type)
		}
	}
	assert.True(t, found)
}

func TestClear_RemovesAllNodesAndLinks(t *testing.T) {
	m := New(time.Minute)
	defer m.Stop()
	now := time.Now()

	d := &dissect.Dissected{SrcMAC: mac("aa:bb:cc:dd:ee:01"), DstMAC: mac("aa:bb:cc:dd:ee:02")}
	m.Ingest(d, 64, now)
	require.NotEmpty(t, m.Nodes(0))

	m.Clear()
	assert.Empty(t, m.Nodes(0))
	assert.Empty(t, m.Links())
}
