package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hwkim3330/netwatch/internal/bus"
	"github.com/hwkim3330/netwatch/internal/capture"
	"github.com/hwkim3330/netwatch/internal/dissect"
	"github.com/hwkim3330/netwatch/internal/ring"
	"github.com/hwkim3330/netwatch/internal/stats"
	"github.com/hwkim3330/netwatch/internal/topology"
)

func newTestPlane() *Plane {
	rb := ring.New(10)
	b := bus.New(16)
	topo := topology.New(time.Minute)
	st := stats.New()
	loop := capture.New(nil, capture.Sink{Ring: rb, Bus: b, Topology: topo, Stats: st})
	return New(loop, rb, b, topo, st)
}

func TestStatus_InitialState(t *testing.T) {
	p := newTestPlane()
	defer p.topo.Stop()

	s := p.Status()
	assert.False(t, s.IsCapturing)
	assert.Equal(t, 0, s.PacketsCaptured)
	assert.True(t, s.CaptureStarted.IsZero())
}

func TestClear_PreservesRunningFlagAndEmptiesState(t *testing.T) {
	p := newTestPlane()
	defer p.topo.Stop()

	p.ring.Push(dissect.Record{})
	p.Clear()

	assert.Equal(t, 0, p.ring.Len())
	assert.False(t, p.Status().IsCapturing)
}

func TestChanged_NotifiesOnClear(t *testing.T) {
	p := newTestPlane()
	defer p.topo.Stop()

	p.Clear()
	select {
	case <-p.Changed():
	default:
		t.Fatal("expected a changed notification")
	}
}
