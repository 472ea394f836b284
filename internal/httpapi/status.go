package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/vishvananda/netlink"
)

// statusResponse is GET /api/status's data shape, per spec.md §6.
type statusResponse struct {
	Interface       string  `json:"interface"`
	IsCapturing     bool    `json:"is_capturing"`
	PacketsCaptured uint64  `json:"packets_captured"`
	BytesCaptured   uint64  `json:"bytes_captured"`
	StartTime       *string `json:"start_time,omitempty"`
}

func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	st := h.deps.Control.Status()
	packets, bytesTotal := h.deps.Stats.Totals()

	resp := statusResponse{
		Interface:       st.Interface,
		IsCapturing:     st.IsCapturing,
		PacketsCaptured: packets,
		BytesCaptured:   bytesTotal,
	}
	if !st.CaptureStarted.IsZero() {
		ts := st.CaptureStarted.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		resp.StartTime = &ts
	}
	writeJSON(w, http.StatusOK, resp)
}

// startRequest optionally overrides the interface/promiscuous/buffer-size
// the control plane already holds; omitted fields keep the current value.
type startRequest struct {
	Interface    *string `json:"interface"`
	Promiscuous  *bool   `json:"promiscuous"`
	BufferSizeMB *int    `json:"buffer_size_mb"`
}

func (h *handlers) startCapture(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cur := h.deps.Control.Status()
	iface := cur.Interface
	if req.Interface != nil {
		iface = *req.Interface
	}
	promiscuous := cur.Promiscuous
	if req.Promiscuous != nil {
		promiscuous = *req.Promiscuous
	}
	bufferSizeMB := cur.BufferSizeMB
	if req.BufferSizeMB != nil {
		bufferSizeMB = *req.BufferSizeMB
	}

	if iface == "" {
		writeError(w, http.StatusBadRequest, "interface not set")
		return
	}

	if err := h.deps.Control.Start(iface, promiscuous, bufferSizeMB); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) stopCapture(w http.ResponseWriter, r *http.Request) {
	h.deps.Control.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) clearCapture(w http.ResponseWriter, r *http.Request) {
	h.deps.Control.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type setInterfaceRequest struct {
	Interface string `json:"interface"`
}

func (h *handlers) setInterface(w http.ResponseWriter, r *http.Request) {
	var req setInterfaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Interface == "" {
		writeError(w, http.StatusBadRequest, "interface is required")
		return
	}
	if err := h.deps.Control.SetInterface(req.Interface); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// interfaceInfo is one entry of GET /api/interfaces.
type interfaceInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Addresses   []string `json:"addresses"`
}

func (h *handlers) listInterfaces(w http.ResponseWriter, r *http.Request) {
	links, err := netlink.LinkList()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list interfaces: "+err.Error())
		return
	}

	out := make([]interfaceInfo, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
		addresses := make([]string, 0, len(addrs))
		if err == nil {
			for _, a := range addrs {
				addresses = append(addresses, a.IPNet.String())
			}
		}
		out = append(out, interfaceInfo{
			Name:        attrs.Name,
			Description: link.Type(),
			Addresses:   addresses,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
