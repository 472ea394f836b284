package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyOptions_Validate(t *testing.T) {
	ok := LatencyOptions{Target: "127.0.0.1", Count: 5, Interval: 10 * time.Millisecond}
	assert.NoError(t, ok.Validate())

	noTarget := LatencyOptions{Count: 5, Interval: time.Millisecond}
	assert.Error(t, noTarget.Validate())

	tooManyCount := LatencyOptions{Target: "x", Count: 10001, Interval: time.Millisecond}
	assert.Error(t, tooManyCount.Validate())

	zeroCount := LatencyOptions{Target: "x", Count: 0, Interval: time.Millisecond}
	assert.Error(t, zeroCount.Validate())

	tooFastInterval := LatencyOptions{Target: "x", Count: 1, Interval: time.Microsecond}
	assert.Error(t, tooFastInterval.Validate())
}

func TestJitter_MeanAbsoluteDelta(t *testing.T) {
	assert.Equal(t, 0.0, jitter(nil))
	assert.Equal(t, 0.0, jitter([]float64{5}))
	// |2-1| + |4-2| = 1 + 2 = 3, mean over 2 deltas = 1.5
	assert.InDelta(t, 1.5, jitter([]float64{1, 2, 4}), 0.0001)
}

func TestThroughputOptions_Validate(t *testing.T) {
	ok := ThroughputOptions{Target: "127.0.0.1", Port: 9000, Duration: 5 * time.Second, BandwidthMbps: 10}
	assert.NoError(t, ok.Validate())
	assert.Equal(t, defaultPayloadBytes, ok.PayloadBytes)

	tooShort := ThroughputOptions{Target: "x", Duration: 0, BandwidthMbps: 10}
	assert.Error(t, tooShort.Validate())

	tooLong := ThroughputOptions{Target: "x", Duration: 601 * time.Second, BandwidthMbps: 10}
	assert.Error(t, tooLong.Validate())

	tooFast := ThroughputOptions{Target: "x", Duration: time.Second, BandwidthMbps: 10001}
	assert.Error(t, tooFast.Validate())
}

func TestSummarize_ComputesAverageBandwidth(t *testing.T) {
	opts := ThroughputOptions{Duration: 2 * time.Second, PayloadBytes: 1000}
	// 1000 packets * 1000 bytes * 8 bits = 8,000,000 bits over 2s = 4 Mbps.
	summary := summarize(1000, opts)
	assert.InDelta(t, 4.0, summary.AvgBandwidthMbps, 0.0001)
	assert.Equal(t, uint64(1000), summary.TotalPackets)
}
