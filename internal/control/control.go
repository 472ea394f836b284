// Package control implements the control plane (C9): the single source of
// truth for mutable capture configuration, serializing start/stop,
// interface rebind, and clear through one lock.
package control

import (
	"fmt"
	"sync"
	"time"

	"github.com/hwkim3330/netwatch/internal/bus"
	"github.com/hwkim3330/netwatch/internal/capture"
	"github.com/hwkim3330/netwatch/internal/ring"
	"github.com/hwkim3330/netwatch/internal/stats"
	"github.com/hwkim3330/netwatch/internal/topology"
)

// Status is a point-in-time snapshot of the control plane's state.
type Status struct {
	Interface       string
	Promiscuous     bool
	BufferSizeMB    int
	IsCapturing     bool
	CaptureStarted  time.Time
	PacketsCaptured int
	Subscribers     int
}

// Plane holds the single source of truth for mutable configuration and
// serializes every transition (start, stop, rebind, clear) through one
// lock, mirroring client/doublezerod/internal/config/config.go's
// mutex-guarded struct with a notify-changed channel.
type Plane struct {
	mu sync.Mutex

	iface        string
	promiscuous  bool
	bufferSizeMB int

	loop *capture.Loop
	ring *ring.Buffer
	bus  *bus.Bus
	topo *topology.Maintainer
	stat *stats.Aggregator

	changedCh chan struct{}
}

// New constructs a Plane wired to the given capture loop and data-plane
// components.
func New(loop *capture.Loop, rb *ring.Buffer, b *bus.Bus, topo *topology.Maintainer, st *stats.Aggregator) *Plane {
	return &Plane{
		loop:         loop,
		ring:         rb,
		bus:          b,
		topo:         topo,
		stat:         st,
		bufferSizeMB: 64,
		changedCh:    make(chan struct{}, 1),
	}
}

// Changed returns a channel that receives a notification (best-effort,
// non-blocking) on every successful transition.
func (p *Plane) Changed() <-chan struct{} { return p.changedCh }

func (p *Plane) notifyChanged() {
	select {
	case p.changedCh <- struct{}{}:
	default:
	}
}

// Start begins capturing on iface. Idempotent if already capturing on the
// same interface configuration.
func (p *Plane) Start(iface string, promiscuous bool, bufferSizeMB int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bufferSizeMB <= 0 {
		bufferSizeMB = 64
	}
	p.iface = iface
	p.promiscuous = promiscuous
	p.bufferSizeMB = bufferSizeMB

	if err := p.loop.Start(capture.Config{Interface: iface, Promiscuous: promiscuous, BufferSizeMB: bufferSizeMB}); err != nil {
		return fmt.Errorf("control: start capture: %w", err)
	}
	p.notifyChanged()
	return nil
}

// Stop halts capture. Safe to call when not capturing.
func (p *Plane) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop.Stop()
	p.notifyChanged()
}

// SetInterface rebinds capture to a new interface: stop -> swap config ->
// start, per spec.md §4.4.
func (p *Plane) SetInterface(iface string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.iface = iface
	if err := p.loop.Rebind(capture.Config{Interface: iface, Promiscuous: p.promiscuous, BufferSizeMB: p.bufferSizeMB}); err != nil {
		return fmt.Errorf("control: rebind to %s: %w", iface, err)
	}
	p.notifyChanged()
	return nil
}

// Clear empties the ring buffer and stats aggregator and expires all
// topology state, preserving the ring's monotonic id sequence and the
// capture loop's running flag.
func (p *Plane) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ring.Clear()
	p.stat.Clear()
	p.topo.Clear()
	p.notifyChanged()
}

// Status returns a point-in-time snapshot of the control plane's state.
func (p *Plane) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Interface:       p.iface,
		Promiscuous:     p.promiscuous,
		BufferSizeMB:    p.bufferSizeMB,
		IsCapturing:     p.loop.IsRunning(),
		CaptureStarted:  p.loop.StartedAt(),
		PacketsCaptured: p.ring.Len(),
		Subscribers:     p.bus.Count(),
	}
}
