// Package topology implements the node/link topology maintainer (C6). It
// keys nodes by MAC (or, failing that, IP) and merges evidence as later
// records associate an IP with a MAC. Expiry runs on the ttlcache library's
// own eviction loop rather than a hand-rolled ticker, and a node's eviction
// cascades into deleting every link incident to it.
package topology

import (
	"context"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/hwkim3330/netwatch/internal/dissect"
	"github.com/hwkim3330/netwatch/internal/oui"
)

// NodeType is the topology's coarse device-role classification.
type NodeType string

const (
	TypeHost      NodeType = "host"
	TypeGateway   NodeType = "gateway"
	TypeSwitch    NodeType = "switch"
	TypeRouter    NodeType = "router"
	TypeBroadcast NodeType = "broadcast"
	TypeMulticast NodeType = "multicast"
	TypeUnknown   NodeType = "unknown"
)

// DefaultIdleThreshold is the duration after last_seen past which a
// topology entity is expired.
const DefaultIdleThreshold = 5 * time.Minute

// DefaultTopNodes caps reported nodes by total packet volume; omitted
// nodes still exist and keep counting.
const DefaultTopNodes = 50

// Node is one discovered device, stably keyed by MAC if known, else by IP.
type Node struct {
	ID         string
	IPs        map[string]struct{}
	MAC        net.HardwareAddr
	Vendor     string
	Type       NodeType
	PacketsIn  uint64
	PacketsOut uint64
	BytesIn    uint64
	BytesOut   uint64
	FirstSeen  time.Time
	LastSeen   time.Time

	// nextHops counts distinct destination node ids seen from this node as
	// a MAC-layer next hop, feeding the gateway heuristic's "observed as
	// the next-hop MAC for many distinct destinations" clause.
	nextHops map[string]struct{}
	hasLLDP  bool
}

func (n *Node) clone() *Node {
	cp := *n
	cp.IPs = make(map[string]struct{}, len(n.IPs))
	for ip := range n.IPs {
		cp.IPs[ip] = struct{}{}
	}
	cp.nextHops = nil
	return &cp
}

// Link is an unordered edge between two node ids, with directional
// counters kept internally and exposed as one bidirectional total.
type Link struct {
	NodeA, NodeB       string
	PacketsAB, BytesAB uint64
	PacketsBA, BytesBA uint64
	LastSeen           time.Time
}

// TotalPackets returns the bidirectional packet total.
func (l *Link) TotalPackets() uint64 { return l.PacketsAB + l.PacketsBA }

// TotalBytes returns the bidirectional byte total.
func (l *Link) TotalBytes() uint64 { return l.BytesAB + l.BytesBA }

func linkKey(a, b string) (string, bool) {
	if a == b {
		return "", false
	}
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b, true
}

// Maintainer holds node/link topology state.
type Maintainer struct {
	mu        sync.Mutex
	nodes     *ttlcache.Cache[string, *Node]
	links     *ttlcache.Cache[string, *Link]
	linkIndex map[string]map[string]struct{} // node id -> set of link keys
	idleTTL   time.Duration
}

// New constructs a Maintainer and starts its background eviction loop.
// idleTTL <= 0 falls back to DefaultIdleThreshold.
func New(idleTTL time.Duration) *Maintainer {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleThreshold
	}
	m := &Maintainer{
		nodes:     ttlcache.New(ttlcache.WithTTL[string, *Node](idleTTL)),
		links:     ttlcache.New(ttlcache.WithTTL[string, *Link](idleTTL)),
		linkIndex: make(map[string]map[string]struct{}),
		idleTTL:   idleTTL,
	}
	m.nodes.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *Node]) {
		m.cascadeNodeEviction(item.Key())
	})
	go m.nodes.Start()
	go m.links.Start()
	return m
}

// Stop halts both background eviction loops.
func (m *Maintainer) Stop() {
	m.nodes.Stop()
	m.links.Stop()
}

func (m *Maintainer) cascadeNodeEviction(nodeID string) {
	m.mu.Lock()
	keys := m.linkIndex[nodeID]
	delete(m.linkIndex, nodeID)
	m.mu.Unlock()

	for key := range keys {
		m.links.Delete(key)
	}
}

// Ingest updates node/link state from one dissected record. It is a no-op
// for records carrying no usable L2/L3 address.
func (m *Maintainer) Ingest(d *dissect.Dissected, wireLen int, ts time.Time) {
	srcIP, dstIP := d.SrcIP, d.DstIP
	if d.ARP != nil {
		// ARP carries its addresses in the ARP payload, not d.SrcIP/DstIP.
		srcIP, dstIP = d.ARP.SenderIP, d.ARP.TargetIP
	}
	srcID := m.upsertEndpoint(d.SrcMAC, srcIP, d, ts, wireLen, true)
	dstID := m.upsertEndpoint(d.DstMAC, dstIP, d, ts, wireLen, false)

	if d.LLDPChassisID != "" && srcID != "" {
		m.markLLDP(srcID)
	}

	if srcID != "" && dstID != "" {
		m.upsertLink(srcID, dstID, wireLen, ts)
		m.trackNextHop(srcID, dstID)
	}
}

func (m *Maintainer) upsertEndpoint(mac net.HardwareAddr, ip net.IP, d *dissect.Dissected, ts time.Time, wireLen int, isSrc bool) string {
	id := nodeID(mac, ip)
	if id == "" {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.getNodeLocked(id)
	if existing == nil && strings.HasPrefix(id, "mac:") && ip != nil && !ip.IsUnspecified() {
		// No MAC-keyed node yet: start from an IP-keyed node for the same
		// address, if one exists, so the merge below folds it in.
		if ipNode := m.getNodeLocked("ip:" + ip.String()); ipNode != nil {
			id, existing = ipNode.ID, ipNode
		}
	}
	var node *Node
	if existing == nil {
		node = &Node{ID: id, IPs: map[string]struct{}{}, nextHops: map[string]struct{}{}, FirstSeen: ts, Type: TypeUnknown}
	} else {
		node = existing.clone()
		node.nextHops = existing.nextHops
		node.hasLLDP = existing.hasLLDP
	}

	if len(mac) > 0 && !isZeroMAC(mac) {
		node.MAC = mac
		node.ID = "mac:" + mac.String()
		if node.Vendor == "" {
			node.Vendor = oui.Lookup(mac)
		}
	}
	if ip != nil && !ip.IsUnspecified() {
		node.IPs[ip.String()] = struct{}{}
	}
	node.LastSeen = ts
	if isSrc {
		node.PacketsOut++
		node.BytesOut += uint64(wireLen)
	} else {
		node.PacketsIn++
		node.BytesIn += uint64(wireLen)
	}
	node.Type = classify(node, mac, ip)

	finalID := node.ID
	if finalID != id {
		// A MAC just showed up for a previously IP-keyed node: merge into
		// the MAC-keyed identity, which wins per spec.md §4.6.
		m.mergeLocked(id, finalID, node)
	} else {
		m.nodes.Set(finalID, node, ttlcache.DefaultTTL)
	}
	return finalID
}

func (m *Maintainer) getNodeLocked(id string) *Node {
	item := m.nodes.Get(id)
	if item == nil {
		return nil
	}
	return item.Value()
}

// mergeLocked folds an IP-keyed node's accumulated data into the MAC-keyed
// identity it has just been observed to share, deletes the IP-keyed entry,
// and repoints any indexed links.
func (m *Maintainer) mergeLocked(oldID, newID string, merged *Node) {
	existing := m.getNodeLocked(newID)
	if existing != nil {
		for ip := range existing.IPs {
			merged.IPs[ip] = struct{}{}
		}
		merged.PacketsIn += existing.PacketsIn
		merged.PacketsOut += existing.PacketsOut
		merged.BytesIn += existing.BytesIn
		merged.BytesOut += existing.BytesOut
		if existing.FirstSeen.Before(merged.FirstSeen) {
			merged.FirstSeen = existing.FirstSeen
		}
	}
	m.nodes.Set(newID, merged, ttlcache.DefaultTTL)
	if oldID != newID {
		m.nodes.Delete(oldID)
		m.repointLinksLocked(oldID, newID)
	}
}

func (m *Maintainer) repointLinksLocked(oldID, newID string) {
	keys := m.linkIndex[oldID]
	delete(m.linkIndex, oldID)
	for key := range keys {
		item := m.links.Get(key)
		if item == nil {
			continue
		}
		link := *item.Value()
		m.links.Delete(key)
		if link.NodeA == oldID {
			link.NodeA = newID
		}
		if link.NodeB == oldID {
			link.NodeB = newID
		}
		newKey, ok := linkKey(link.NodeA, link.NodeB)
		if !ok {
			continue
		}
		m.links.Set(newKey, &link, ttlcache.DefaultTTL)
		m.indexLinkLocked(newKey, link.NodeA, link.NodeB)
	}
}

func (m *Maintainer) indexLinkLocked(key, a, b string) {
	for _, id := range [2]string{a, b} {
		if m.linkIndex[id] == nil {
			m.linkIndex[id] = make(map[string]struct{})
		}
		m.linkIndex[id][key] = struct{}{}
	}
}

func (m *Maintainer) upsertLink(srcID, dstID string, wireLen int, ts time.Time) {
	key, ok := linkKey(srcID, dstID)
	if !ok {
		return // self-loop
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.links.Get(key)
	var link Link
	if item != nil {
		link = *item.Value()
	} else {
		link = Link{NodeA: srcID, NodeB: dstID}
	}
	if link.NodeA == srcID {
		link.PacketsAB++
		link.BytesAB += uint64(wireLen)
	} else {
		link.PacketsBA++
		link.BytesBA += uint64(wireLen)
	}
	link.LastSeen = ts
	m.links.Set(key, &link, ttlcache.DefaultTTL)
	m.indexLinkLocked(key, link.NodeA, link.NodeB)
}

func (m *Maintainer) trackNextHop(srcID, dstID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.getNodeLocked(srcID)
	if existing == nil {
		return
	}
	node := existing.clone()
	node.nextHops = make(map[string]struct{}, len(existing.nextHops)+1)
	for k := range existing.nextHops {
		node.nextHops[k] = struct{}{}
	}
	node.nextHops[dstID] = struct{}{}
	if len(node.nextHops) > 8 && (node.Type == TypeUnknown || node.Type == TypeHost) {
		node.Type = TypeGateway
	}
	m.nodes.Set(srcID, node, ttlcache.DefaultTTL)
}

func (m *Maintainer) markLLDP(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.getNodeLocked(nodeID)
	if existing == nil {
		return
	}
	node := existing.clone()
	node.nextHops = existing.nextHops
	node.hasLLDP = true
	node.Type = TypeSwitch
	m.nodes.Set(nodeID, node, ttlcache.DefaultTTL)
}

func nodeID(mac net.HardwareAddr, ip net.IP) string {
	if len(mac) > 0 && !isZeroMAC(mac) {
		return "mac:" + mac.String()
	}
	if ip != nil && !ip.IsUnspecified() {
		return "ip:" + ip.String()
	}
	return ""
}

func isZeroMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}

func classify(node *Node, mac net.HardwareAddr, ip net.IP) NodeType {
	if len(mac) > 0 && isBroadcastMAC(mac) {
		return TypeBroadcast
	}
	if ip != nil && strings.HasSuffix(ip.String(), ".255") {
		return TypeBroadcast
	}
	if len(mac) > 0 && mac[0]&0x01 != 0 {
		return TypeMulticast
	}
	if ip != nil && ip.To4() != nil && ip.To4()[0]&0xF0 == 0xE0 {
		return TypeMulticast
	}
	if node.hasLLDP {
		return TypeSwitch
	}
	if ip != nil && isPrivate(ip) {
		last := ip.To4()
		if last != nil && (last[3] == 1 || last[3] == 254) {
			return TypeGateway
		}
	}
	if node.Type == TypeGateway {
		return TypeGateway
	}
	if node.Type != TypeUnknown {
		return node.Type
	}
	return TypeHost
}

func isBroadcastMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0xFF {
			return false
		}
	}
	return true
}

func isPrivate(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	return v4[0] == 10 ||
		(v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31) ||
		(v4[0] == 192 && v4[1] == 168)
}

// Nodes returns a snapshot of nodes capped to the top N (default
// DefaultTopNodes) by total packet volume.
func (m *Maintainer) Nodes(top int) []*Node {
	if top <= 0 {
		top = DefaultTopNodes
	}
	m.mu.Lock()
	items := m.nodes.Items()
	out := make([]*Node, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value().clone())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].PacketsIn+out[i].PacketsOut > out[j].PacketsIn+out[j].PacketsOut
	})
	if len(out) > top {
		out = out[:top]
	}
	return out
}

// Links returns a snapshot of all current links.
func (m *Maintainer) Links() []*Link {
	m.mu.Lock()
	items := m.links.Items()
	out := make([]*Link, 0, len(items))
	for _, item := range items {
		cp := *item.Value()
		out = append(out, &cp)
	}
	m.mu.Unlock()
	return out
}

// Clear expires every node and link immediately.
func (m *Maintainer) Clear() {
	m.mu.Lock()
	m.linkIndex = make(map[string]map[string]struct{})
	m.mu.Unlock()
	m.links.DeleteAll()
	m.nodes.DeleteAll()
}
