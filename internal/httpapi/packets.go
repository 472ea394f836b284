package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hwkim3330/netwatch/internal/dissect"
	"github.com/hwkim3330/netwatch/internal/filter"
)

// packetDTO is the wire shape of one dissect.Record: net.IP/net.HardwareAddr
// fields are rendered as their string forms rather than Go's default
// base64-encoded []byte JSON.
type packetDTO struct {
	ID             uint64 `json:"id"`
	Timestamp      string `json:"timestamp"`
	Length         int    `json:"length"`
	SrcMAC         string `json:"src_mac,omitempty"`
	DstMAC         string `json:"dst_mac,omitempty"`
	EtherType      string `json:"ether_type,omitempty"`
	VLANID         uint16 `json:"vlan_id,omitempty"`
	SrcIP          string `json:"src_ip,omitempty"`
	DstIP          string `json:"dst_ip,omitempty"`
	Protocol       string `json:"protocol,omitempty"`
	SrcPort        uint16 `json:"src_port,omitempty"`
	DstPort        uint16 `json:"dst_port,omitempty"`
	Classification string `json:"classification"`
	Summary        string `json:"summary"`
}

func toPacketDTO(rec *dissect.Record) packetDTO {
	d := &rec.Dissected
	dto := packetDTO{
		ID:             rec.ID,
		Timestamp:      rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
		Length:         rec.Length,
		EtherType:      d.EtherTypeName,
		Classification: string(d.Classification),
		Summary:        filter.Stringify(rec),
	}
	if len(d.SrcMAC) > 0 {
		dto.SrcMAC = d.SrcMAC.String()
	}
	if len(d.DstMAC) > 0 {
		dto.DstMAC = d.DstMAC.String()
	}
	if d.HasVLAN {
		dto.VLANID = d.VLANID
	}
	if d.HasL3 {
		dto.SrcIP = d.SrcIP.String()
		dto.DstIP = d.DstIP.String()
	}
	if d.HasL4 {
		dto.Protocol = d.Protocol
		dto.SrcPort = d.SrcPort
		dto.DstPort = d.DstPort
	}
	return dto
}

func parsePredicate(r *http.Request) (filter.Predicate, error) {
	src := r.URL.Query().Get("filter")
	if src == "" {
		return filter.Predicate{}, nil
	}
	return filter.Compile(src)
}

func (h *handlers) listPackets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var offset uint64
	if v := q.Get("offset"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = parsed
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	pred, err := parsePredicate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid filter: %v", err))
		return
	}

	recs := h.deps.Ring.Snapshot(pred, offset, limit)
	out := make([]packetDTO, len(recs))
	for i := range recs {
		out[i] = toPacketDTO(&recs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// streamPackets streams one SSE "message" event per published record. On
// subscriber closure (slow-consumer eviction per internal/bus) it emits one
// terminal "error" event and returns, mirroring
// lake/api/handlers/sessions.go's WatchSessionLock SSE loop.
func (h *handlers) streamPackets(w http.ResponseWriter, r *http.Request) {
	pred, err := parsePredicate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid filter: %v", err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.deps.Bus.Subscribe()
	defer h.deps.Bus.Unsubscribe(sub.ID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-sub.C():
			if !ok {
				return
			}
			if rec.ID == 0 && rec.Raw == nil {
				// Sentinel ClosedEvent: the bus dropped this subscriber for
				// falling too far behind.
				if h.deps.Metrics != nil {
					h.deps.Metrics.ObserveDrop()
				}
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", mustJSON(map[string]string{"reason": "subscriber overflow"}))
				flusher.Flush()
				return
			}
			if !pred.Match(&rec) {
				continue
			}
			data, _ := json.Marshal(toPacketDTO(&rec))
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
