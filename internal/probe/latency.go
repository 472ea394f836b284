// Package probe implements the latency and throughput probers (C8). Both
// run in their own context, independent of the capture pipeline: neither
// reads nor writes the ring buffer, bus, topology, or stats aggregator.
package probe

import (
	"context"
	"fmt"
	"math"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingEvent is one streamed latency-probe result.
type PingEvent struct {
	Seq     int     `json:"seq"`
	Success bool    `json:"success"`
	RTTMs   float64 `json:"rtt_ms"`
	Error   string  `json:"error,omitempty"`
}

// PingSummary is the final event a latency probe emits.
type PingSummary struct {
	MinMs       float64 `json:"min_ms"`
	AvgMs       float64 `json:"avg_ms"`
	MaxMs       float64 `json:"max_ms"`
	LossPercent float64 `json:"loss_percent"`
	JitterMs    float64 `json:"jitter_ms"`
}

// LatencyOptions bounds a latency probe's inputs per spec.md §4.8.
type LatencyOptions struct {
	Target   string
	Count    int           // 1..10000
	Interval time.Duration // >= 1ms
}

// Validate returns an error if Target is empty or Count/Interval fall
// outside their documented bounds; it does not adjust any field.
func (o *LatencyOptions) Validate() error {
	if o.Target == "" {
		return fmt.Errorf("probe: target is required")
	}
	if o.Count < 1 || o.Count > 10000 {
		return fmt.Errorf("probe: count must be in [1, 10000], got %d", o.Count)
	}
	if o.Interval < time.Millisecond {
		return fmt.Errorf("probe: interval must be >= 1ms")
	}
	return nil
}

// RunLatency streams one PingEvent per echo to onEvent, then a final
// PingSummary. Cancelling ctx aborts the probe within one interval,
// mirroring client/doublezerod/internal/latency/ping.go's
// cancel-via-context-then-Stop pattern.
func RunLatency(ctx context.Context, opts LatencyOptions, onEvent func(PingEvent), onSummary func(PingSummary)) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	p, err := probing.NewPinger(opts.Target)
	if err != nil {
		return fmt.Errorf("probe: create pinger: %w", err)
	}
	p.SetPrivileged(true)
	p.Count = opts.Count
	p.Interval = opts.Interval
	p.Timeout = time.Duration(opts.Count)*opts.Interval + 5*time.Second

	seen := make(map[int]float64)
	var rtts []float64
	p.OnRecv = func(pkt *probing.Packet) {
		rttMs := float64(pkt.Rtt) / float64(time.Millisecond)
		seen[pkt.Seq] = rttMs
		rtts = append(rtts, rttMs)
		onEvent(PingEvent{Seq: pkt.Seq, Success: true, RTTMs: rttMs})
	}

	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	select {
	case <-ctx.Done():
		p.Stop()
		<-done
	case err := <-done:
		if err != nil {
			return fmt.Errorf("probe: run: %w", err)
		}
	}

	// Emit a synthetic failure event for every sequence number that never
	// got a reply, so the caller sees exactly Count events before summary.
	for seq := 0; seq < opts.Count; seq++ {
		if _, ok := seen[seq]; !ok {
			onEvent(PingEvent{Seq: seq, Success: false, Error: "no reply"})
		}
	}

	stats := p.Statistics()
	summary := PingSummary{
		LossPercent: stats.PacketLoss,
	}
	if len(rtts) > 0 {
		summary.MinMs = float64(stats.MinRtt) / float64(time.Millisecond)
		summary.AvgMs = float64(stats.AvgRtt) / float64(time.Millisecond)
		summary.MaxMs = float64(stats.MaxRtt) / float64(time.Millisecond)
		summary.JitterMs = jitter(rtts)
	}
	onSummary(summary)
	return nil
}

// jitter is the mean of |rtt[i] - rtt[i-1]| over successful samples, in the
// order they were received.
func jitter(rtts []float64) float64 {
	if len(rtts) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(rtts); i++ {
		sum += math.Abs(rtts[i] - rtts[i-1])
	}
	return sum / float64(len(rtts)-1)
}
