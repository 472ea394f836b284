// Package metrics implements the Prometheus collectors (C13): registered
// once at process start via promauto, updated by the engine's 1Hz tick
// (capture totals, topology size, protocol counts) and by the HTTP probe and
// packet-stream handlers (probe outcomes, slow-subscriber closures), and
// exposed on /metrics through promhttp.Handler (mounted by internal/httpapi).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector netwatchd exports.
type Metrics struct {
	PacketsCapturedTotal prometheus.Gauge
	BytesCapturedTotal   prometheus.Gauge
	TopologyNodes        prometheus.Gauge
	TopologyLinks        prometheus.Gauge
	ProtocolPackets      *prometheus.GaugeVec
	ProbeSuccessTotal    *prometheus.CounterVec
	ProbeFailureTotal    *prometheus.CounterVec
	SubscriberDropsTotal prometheus.Counter
}

// New constructs and registers every collector against reg, mirroring
// telemetry/flow-enricher/internal/flow-enricher/metrics.go's
// NewEnricherMetrics(reg) factory-construction style.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PacketsCapturedTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netwatch_packets_captured_total",
			Help: "Cumulative packets captured since process start or last clear",
		}),
		BytesCapturedTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netwatch_bytes_captured_total",
			Help: "Cumulative bytes captured since process start or last clear",
		}),
		TopologyNodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netwatch_topology_nodes",
			Help: "Current number of discovered topology nodes",
		}),
		TopologyLinks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netwatch_topology_links",
			Help: "Current number of discovered topology links",
		}),
		ProtocolPackets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netwatch_protocol_packets",
			Help: "Current packet count by protocol",
		}, []string{"protocol"}),
		ProbeSuccessTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netwatch_probe_success_total",
			Help: "Total number of successful probes by kind",
		}, []string{"kind"}),
		ProbeFailureTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netwatch_probe_failure_total",
			Help: "Total number of failed probes by kind",
		}, []string{"kind"}),
		SubscriberDropsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "netwatch_subscriber_drops_total",
			Help: "Total number of bus subscribers closed for falling behind",
		}),
	}
}

// UpdateCapture sets the cumulative capture gauges from a stats aggregator
// snapshot (see internal/stats.Aggregator.Totals).
func (m *Metrics) UpdateCapture(packets, bytesTotal uint64) {
	m.PacketsCapturedTotal.Set(float64(packets))
	m.BytesCapturedTotal.Set(float64(bytesTotal))
}

// UpdateTopology sets the node/link gauges from a topology snapshot size.
func (m *Metrics) UpdateTopology(nodes, links int) {
	m.TopologyNodes.Set(float64(nodes))
	m.TopologyLinks.Set(float64(links))
}

// UpdateProtocols sets the per-protocol gauge from a stats aggregator
// protocol-count snapshot.
func (m *Metrics) UpdateProtocols(counts map[string]uint64) {
	for proto, n := range counts {
		m.ProtocolPackets.WithLabelValues(proto).Set(float64(n))
	}
}

// ObserveProbe records one probe's outcome by kind ("ping" or "throughput").
func (m *Metrics) ObserveProbe(kind string, success bool) {
	if success {
		m.ProbeSuccessTotal.WithLabelValues(kind).Inc()
	} else {
		m.ProbeFailureTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveDrop records one bus subscriber closed by the slow-consumer policy.
func (m *Metrics) ObserveDrop() {
	m.SubscriberDropsTotal.Inc()
}
