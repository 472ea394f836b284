package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Addr:         "127.0.0.1:0",
		RingCapacity: 10,
		IdleTimeout:  time.Minute,
		QueueDepth:   16,
		Registerer:   prometheus.NewRegistry(),
	}
}

func TestNew_BuildsEngineWithoutError(t *testing.T) {
	e := New(nil, testConfig())
	require.NotNil(t, e)
	assert.NotNil(t, e.Control())
}

func TestRun_ShutsDownCleanlyOnContextCancel(t *testing.T) {
	e := New(nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRun_InvalidInterfaceReturnsError(t *testing.T) {
	cfg := testConfig()
	cfg.Interface = "netwatch-test-nonexistent-iface"
	e := New(nil, cfg)

	err := e.Run(context.Background())
	assert.Error(t, err)
}
