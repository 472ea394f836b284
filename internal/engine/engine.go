// Package engine wires C1-C13 together into one running process: the ring
// buffer, bus, topology maintainer, stats aggregator, capture loop, control
// plane, metrics, and HTTP server, mirroring
// client/doublezerod/internal/runtime/run.go's goroutines-plus-error-channel
// shape.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hwkim3330/netwatch/internal/bus"
	"github.com/hwkim3330/netwatch/internal/capture"
	"github.com/hwkim3330/netwatch/internal/control"
	"github.com/hwkim3330/netwatch/internal/httpapi"
	"github.com/hwkim3330/netwatch/internal/metrics"
	"github.com/hwkim3330/netwatch/internal/ring"
	"github.com/hwkim3330/netwatch/internal/stats"
	"github.com/hwkim3330/netwatch/internal/topology"
)

// tickInterval is how often the engine samples the rolling stats series and
// refreshes the point-in-time metric gauges.
const tickInterval = time.Second

// Config is the engine's startup configuration, sourced from CLI flags
// (optionally layered under YAML/.env defaults) at the process boundary.
type Config struct {
	Interface    string // empty means don't auto-start capture
	Promiscuous  bool
	BufferSizeMB int
	Addr         string // HTTP listen address, e.g. ":8080"
	RingCapacity int
	IdleTimeout  time.Duration
	QueueDepth   int

	// Registerer is where capture/topology/probe metrics are registered.
	// Defaults to prometheus.DefaultRegisterer, which is what /metrics
	// serves; tests supply a throwaway registry to avoid cross-test
	// duplicate-registration panics.
	Registerer prometheus.Registerer
}

// Engine owns every long-lived component and the HTTP server that fronts
// them.
type Engine struct {
	log     *slog.Logger
	cfg     Config
	ring    *ring.Buffer
	bus     *bus.Bus
	topo    *topology.Maintainer
	stats   *stats.Aggregator
	loop    *capture.Loop
	control *control.Plane
	metrics *metrics.Metrics
	server  *http.Server
}

// New builds every component and wires them together, but doesn't start
// capture or the HTTP server yet; call Run for that.
func New(log *slog.Logger, cfg Config) *Engine {
	if log == nil {
		log = slog.Default()
	}
	rb := ring.New(cfg.RingCapacity)
	b := bus.New(cfg.QueueDepth)
	topo := topology.New(cfg.IdleTimeout)
	st := stats.New()
	loop := capture.New(log, capture.Sink{Ring: rb, Bus: b, Topology: topo, Stats: st})
	ctrl := control.New(loop, rb, b, topo, st)
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := metrics.New(reg)

	router := httpapi.NewRouter(httpapi.Deps{
		Control:  ctrl,
		Ring:     rb,
		Bus:      b,
		Topology: topo,
		Stats:    st,
		Metrics:  m,
		Log:      log,
	})

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &Engine{
		log:     log,
		cfg:     cfg,
		ring:    rb,
		bus:     b,
		topo:    topo,
		stats:   st,
		loop:    loop,
		control: ctrl,
		metrics: m,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // packet/ping/throughput streams run indefinitely
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Control returns the engine's control plane, for callers (e.g. a CLI
// subcommand) that need direct access without going through HTTP.
func (e *Engine) Control() *control.Plane { return e.control }

// Run starts capture (if an interface was configured), the metrics/tick
// loop, and the HTTP server, and blocks until ctx is cancelled or a fatal
// error occurs, mirroring run.go's select on ctx.Done() vs an error
// channel fed by every goroutine.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.Interface != "" {
		if err := e.control.Start(e.cfg.Interface, e.cfg.Promiscuous, e.cfg.BufferSizeMB); err != nil {
			return fmt.Errorf("engine: start capture: %w", err)
		}
	}

	errCh := make(chan error, 1)

	go func() {
		e.log.Info("http: listening", "addr", e.server.Addr)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("engine: http server: %w", err)
			return
		}
		errCh <- nil
	}()

	go e.tickLoop(ctx)

	select {
	case <-ctx.Done():
		e.log.Info("engine: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		e.control.Stop()
		e.topo.Stop()
		if err := e.server.Shutdown(shutdownCtx); err != nil {
			e.log.Error("engine: http shutdown error", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// tickLoop runs at tickInterval until ctx is cancelled, sampling the stats
// aggregator's rolling series and refreshing the point-in-time metric
// gauges (capture totals, topology size, per-protocol counts) that aren't
// tied to a discrete event.
func (e *Engine) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.stats.Tick(now)

			packets, bytesTotal := e.stats.Totals()
			e.metrics.UpdateCapture(packets, bytesTotal)
			e.metrics.UpdateProtocols(e.stats.Protocols())
			e.metrics.UpdateTopology(len(e.topo.Nodes(math.MaxInt)), len(e.topo.Links()))
		}
	}
}
