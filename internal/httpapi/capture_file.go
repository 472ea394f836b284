package httpapi

import (
	"net/http"

	"github.com/hwkim3330/netwatch/internal/ring"
)

// exportCapture streams the live ring buffer out as a pcap file (C12),
// no filter or pagination applied per SPEC_FULL.md §4.10.
func (h *handlers) exportCapture(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.tcpdump.pcap")
	w.Header().Set("Content-Disposition", `attachment; filename="capture.pcap"`)
	if err := h.deps.Ring.ExportPCAP(w); err != nil {
		h.deps.Log.Error("export pcap failed", "err", err)
	}
}

// importCapture re-dissects an uploaded pcap file through C1, same as a
// live capture would, and pushes the resulting records into the ring
// buffer, which restamps their ids. The records are not folded into the
// stats aggregator or topology and are not published on the bus.
func (h *handlers) importCapture(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	recs, err := ring.ImportPCAP(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to import pcap: "+err.Error())
		return
	}
	for _, rec := range recs {
		h.deps.Ring.Push(rec)
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": len(recs)})
}
