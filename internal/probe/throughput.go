package probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// ThroughputSample is one per-second throughput observation.
type ThroughputSample struct {
	Sec           int     `json:"sec"`
	BandwidthMbps float64 `json:"bandwidth_mbps"`
	TotalPackets  uint64  `json:"total_packets"`
}

// ThroughputSummary is the final event a throughput probe emits.
type ThroughputSummary struct {
	AvgBandwidthMbps float64 `json:"avg_bandwidth_mbps"`
	TotalPackets     uint64  `json:"total_packets"`
}

// ThroughputOptions bounds a throughput probe's inputs per spec.md §4.8.
type ThroughputOptions struct {
	Target        string
	Port          int
	Duration      time.Duration // 1s..600s
	BandwidthMbps float64       // 1..10000
	PayloadBytes  int           // default 1400
}

const defaultPayloadBytes = 1400

// Validate returns an error if Target is empty or Duration/BandwidthMbps
// fall outside their documented bounds, and fills in the default payload
// size when PayloadBytes is not positive.
func (o *ThroughputOptions) Validate() error {
	if o.Target == "" {
		return fmt.Errorf("probe: target is required")
	}
	if o.Duration < time.Second || o.Duration > 600*time.Second {
		return fmt.Errorf("probe: duration must be in [1s, 600s]")
	}
	if o.BandwidthMbps < 1 || o.BandwidthMbps > 10000 {
		return fmt.Errorf("probe: bandwidth must be in [1, 10000] Mbps")
	}
	if o.PayloadBytes <= 0 {
		o.PayloadBytes = defaultPayloadBytes
	}
	return nil
}

// RunThroughput paces fixed-size UDP datagrams at the requested bandwidth
// using a token-bucket with capacity one burst-interval, emitting one
// per-second ThroughputSample and a final ThroughputSummary. Loss is not
// measured — this is one-way UDP, grounded on
// client/doublezerod/internal/liveness/udp.go's ipv4.PacketConn-based
// sender.
func RunThroughput(ctx context.Context, opts ThroughputOptions, onSample func(ThroughputSample), onSummary func(ThroughputSummary)) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	raddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", opts.Target, opts.Port))
	if err != nil {
		return fmt.Errorf("probe: resolve target: %w", err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return fmt.Errorf("probe: dial: %w", err)
	}
	defer conn.Close()
	pc4 := ipv4.NewPacketConn(conn)

	payload := make([]byte, opts.PayloadBytes)
	packetsPerSec := (opts.BandwidthMbps * 1_000_000 / 8) / float64(opts.PayloadBytes)
	if packetsPerSec < 1 {
		packetsPerSec = 1
	}
	burstInterval := time.Second / time.Duration(packetsPerSec)

	ticker := time.NewTicker(burstInterval)
	defer ticker.Stop()
	secondTicker := time.NewTicker(time.Second)
	defer secondTicker.Stop()

	deadline := time.Now().Add(opts.Duration)
	var totalPackets uint64
	var secPackets uint64
	var seq uint64
	sec := 0

	for {
		select {
		case <-ctx.Done():
			onSummary(summarize(totalPackets, opts))
			return nil
		case <-ticker.C:
			if time.Now().After(deadline) {
				onSummary(summarize(totalPackets, opts))
				return nil
			}
			// Wire header (spec.md §6): 8-byte sequence, 8-byte send
			// timestamp in nanoseconds, then zero-fill.
			if len(payload) >= 16 {
				binary.BigEndian.PutUint64(payload[0:8], seq)
				binary.BigEndian.PutUint64(payload[8:16], uint64(time.Now().UnixNano()))
			}
			if _, err := pc4.WriteTo(payload, nil, raddr); err == nil {
				totalPackets++
				secPackets++
			}
			seq++
		case <-secondTicker.C:
			sec++
			bw := float64(secPackets*uint64(opts.PayloadBytes)*8) / 1_000_000
			onSample(ThroughputSample{Sec: sec, BandwidthMbps: bw, TotalPackets: totalPackets})
			secPackets = 0
			if time.Now().After(deadline) {
				onSummary(summarize(totalPackets, opts))
				return nil
			}
		}
	}
}

func summarize(totalPackets uint64, opts ThroughputOptions) ThroughputSummary {
	avg := float64(totalPackets*uint64(opts.PayloadBytes)*8) / 1_000_000 / opts.Duration.Seconds()
	return ThroughputSummary{AvgBandwidthMbps: avg, TotalPackets: totalPackets}
}
