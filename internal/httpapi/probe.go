package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hwkim3330/netwatch/internal/probe"
)

func sseHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

// streamPing runs a latency probe (C8) and streams one SSE "ping" event per
// echo, followed by a terminal "complete" event with the summary.
func (h *handlers) streamPing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "target query parameter is required")
		return
	}
	count, _ := strconv.Atoi(q.Get("count"))
	if count <= 0 {
		count = 4
	}
	intervalMS, _ := strconv.Atoi(q.Get("interval"))
	interval := time.Duration(intervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	opts := probe.LatencyOptions{Target: target, Count: count, Interval: interval}
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err := probe.RunLatency(r.Context(), opts,
		func(ev probe.PingEvent) {
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "event: ping\ndata: %s\n\n", data)
			flusher.Flush()
		},
		func(sum probe.PingSummary) {
			if h.deps.Metrics != nil {
				h.deps.Metrics.ObserveProbe("ping", sum.LossPercent < 100)
			}
			data, _ := json.Marshal(sum)
			fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
			flusher.Flush()
		},
	)
	if err != nil {
		if h.deps.Metrics != nil {
			h.deps.Metrics.ObserveProbe("ping", false)
		}
		data, _ := json.Marshal(map[string]string{"reason": err.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
		flusher.Flush()
	}
}

// streamThroughput runs a throughput probe (C8) and streams one SSE
// "throughput" event per second, followed by a terminal "complete" event.
func (h *handlers) streamThroughput(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "target query parameter is required")
		return
	}
	durationS, _ := strconv.Atoi(q.Get("duration"))
	if durationS <= 0 {
		durationS = 10
	}
	bandwidth, _ := strconv.ParseFloat(q.Get("bandwidth"), 64)
	if bandwidth <= 0 {
		bandwidth = 10
	}
	port, _ := strconv.Atoi(q.Get("port"))
	if port <= 0 {
		port = 5201
	}

	opts := probe.ThroughputOptions{
		Target:        target,
		Port:          port,
		Duration:      time.Duration(durationS) * time.Second,
		BandwidthMbps: bandwidth,
	}
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err := probe.RunThroughput(r.Context(), opts,
		func(s probe.ThroughputSample) {
			data, _ := json.Marshal(s)
			fmt.Fprintf(w, "event: throughput\ndata: %s\n\n", data)
			flusher.Flush()
		},
		func(sum probe.ThroughputSummary) {
			if h.deps.Metrics != nil {
				h.deps.Metrics.ObserveProbe("throughput", sum.TotalPackets > 0)
			}
			data, _ := json.Marshal(sum)
			fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
			flusher.Flush()
		},
	)
	if err != nil {
		if h.deps.Metrics != nil {
			h.deps.Metrics.ObserveProbe("throughput", false)
		}
		data, _ := json.Marshal(map[string]string{"reason": err.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
		flusher.Flush()
	}
}
