// Package stats implements the protocol/host/conversation/size-histogram
// aggregator (C7): protocol counts, per-IP HostStat, unordered-pair
// Conversation totals, a 7-bucket size histogram, and a 60-second rolling
// pps/bps series sampled at 1Hz. All counters are 64-bit and monotonic
// except across Clear().
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/hwkim3330/netwatch/internal/dissect"
)

// HostStat is one IP's aggregated traffic counters.
type HostStat struct {
	IP        string
	TxPackets uint64
	RxPackets uint64
	TxBytes   uint64
	RxBytes   uint64
	Protocols map[string]struct{}
	Ports     map[uint16]struct{}
	FirstSeen time.Time
	LastSeen  time.Time
}

func (h *HostStat) clone() *HostStat {
	cp := *h
	cp.Protocols = make(map[string]struct{}, len(h.Protocols))
	for p := range h.Protocols {
		cp.Protocols[p] = struct{}{}
	}
	cp.Ports = make(map[uint16]struct{}, len(h.Ports))
	for p := range h.Ports {
		cp.Ports[p] = struct{}{}
	}
	return &cp
}

// Conversation is an unordered pair of IPs with aggregated counters.
type Conversation struct {
	IPA, IPB  string
	Packets   uint64
	Bytes     uint64
	Protocols map[string]struct{}
	LastSeen  time.Time
}

// histogramBounds are the inclusive upper bounds of the 7 size buckets.
var histogramBounds = [7]int{64, 128, 256, 512, 1024, 1518, -1} // -1 = >1518, unbounded

// seriesWindow is how long the rolling pps/bps series retains samples.
const seriesWindow = 60 * time.Second

// Sample is one 1Hz pps/bps observation.
type Sample struct {
	Time    time.Time
	Packets uint64
	Bytes   uint64
}

// Aggregator holds all C7 state behind one lock; never expose the lock
// itself across a package boundary.
type Aggregator struct {
	mu            sync.Mutex
	protocols     map[string]uint64
	hosts         map[string]*HostStat
	conversations map[string]*Conversation
	histogram     [7]uint64

	series       []Sample
	windowPkts   uint64
	windowBytes  uint64

	totalPackets uint64
	totalBytes   uint64
}

// New constructs an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		protocols:     make(map[string]uint64),
		hosts:         make(map[string]*HostStat),
		conversations: make(map[string]*Conversation),
	}
}

// Observe folds one dissected record's wire length into every table.
func (a *Aggregator) Observe(d *dissect.Dissected, wireLen int, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	proto := d.Protocol
	if proto == "" {
		proto = string(d.Classification)
	}
	a.protocols[proto]++
	a.bucket(wireLen)
	a.windowPkts++
	a.windowBytes += uint64(wireLen)
	a.totalPackets++
	a.totalBytes += uint64(wireLen)

	if !d.HasL3 {
		return
	}
	src, dst := d.SrcIP.String(), d.DstIP.String()
	a.touchHost(src, ts, d, wireLen, true)
	a.touchHost(dst, ts, d, wireLen, false)
	a.touchConversation(src, dst, d, wireLen, ts)
}

func (a *Aggregator) bucket(wireLen int) {
	for i, bound := range histogramBounds {
		if bound == -1 || wireLen <= bound {
			a.histogram[i]++
			return
		}
	}
}

func (a *Aggregator) touchHost(ip string, ts time.Time, d *dissect.Dissected, wireLen int, isSrc bool) {
	h, ok := a.hosts[ip]
	if !ok {
		h = &HostStat{IP: ip, Protocols: map[string]struct{}{}, Ports: map[uint16]struct{}{}, FirstSeen: ts}
		a.hosts[ip] = h
	}
	if isSrc {
		h.TxPackets++
		h.TxBytes += uint64(wireLen)
	} else {
		h.RxPackets++
		h.RxBytes += uint64(wireLen)
	}
	h.LastSeen = ts
	if d.HasL4 {
		h.Protocols[d.Protocol] = struct{}{}
		if isSrc {
			h.Ports[d.SrcPort] = struct{}{}
		} else {
			h.Ports[d.DstPort] = struct{}{}
		}
	}
}

func convKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

func (a *Aggregator) touchConversation(src, dst string, d *dissect.Dissected, wireLen int, ts time.Time) {
	key := convKey(src, dst)
	c, ok := a.conversations[key]
	if !ok {
		c = &Conversation{IPA: src, IPB: dst, Protocols: map[string]struct{}{}}
		a.conversations[key] = c
	}
	c.Packets++
	c.Bytes += uint64(wireLen)
	c.LastSeen = ts
	if d.HasL4 {
		c.Protocols[d.Protocol] = struct{}{}
	}
}

// Tick samples the current 1-second window into the rolling series and
// resets the window counters. Intended to be called once per second.
func (a *Aggregator) Tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.series = append(a.series, Sample{Time: now, Packets: a.windowPkts, Bytes: a.windowBytes})
	a.windowPkts, a.windowBytes = 0, 0

	cutoff := now.Add(-seriesWindow)
	i := 0
	for i < len(a.series) && a.series[i].Time.Before(cutoff) {
		i++
	}
	a.series = a.series[i:]
}

// Series returns a copy of the current rolling pps/bps samples.
func (a *Aggregator) Series() []Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Sample, len(a.series))
	copy(out, a.series)
	return out
}

// Protocols returns a copy of the protocol->count table.
func (a *Aggregator) Protocols() map[string]uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]uint64, len(a.protocols))
	for k, v := range a.protocols {
		out[k] = v
	}
	return out
}

// Hosts returns a snapshot of all HostStat entries, sorted by IP for
// deterministic output.
func (a *Aggregator) Hosts() []*HostStat {
	a.mu.Lock()
	out := make([]*HostStat, 0, len(a.hosts))
	for _, h := range a.hosts {
		out = append(out, h.clone())
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

// Conversations returns a snapshot of all Conversation entries.
func (a *Aggregator) Conversations() []*Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Conversation, 0, len(a.conversations))
	for _, c := range a.conversations {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// Histogram returns a copy of the 7-bucket size histogram.
func (a *Aggregator) Histogram() [7]uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.histogram
}

// Totals returns the cumulative packet and byte counts observed since
// construction or the last Clear.
func (a *Aggregator) Totals() (packets, bytes uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalPackets, a.totalBytes
}

// Clear resets every table to empty. Counters never decrement except here.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.protocols = make(map[string]uint64)
	a.hosts = make(map[string]*HostStat)
	a.conversations = make(map[string]*Conversation)
	a.histogram = [7]uint64{}
	a.series = nil
	a.windowPkts, a.windowBytes = 0, 0
	a.totalPackets, a.totalBytes = 0, 0
}
